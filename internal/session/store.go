package session

import (
	"reflect"
	"sync"
	"time"
)

// View is the externally visible summary of the session after a cycle.
type View struct {
	Stage           GameStage       `json:"stage"`
	StageTag        string          `json:"stageTag"`
	Scene           string          `json:"scene"`
	Paused          bool            `json:"paused"`
	SongName        string          `json:"songName,omitempty"`
	ArtistName      string          `json:"artistName,omitempty"`
	Arrangement     string          `json:"arrangement,omitempty"`
	SectionIndex    int             `json:"sectionIndex"`
	SectionName     string          `json:"sectionName,omitempty"`
	SectionCategory SectionCategory `json:"sectionCategory"`
	SongTimer       float64         `json:"songTimer"`
	Stats           Aggregator      `json:"stats"`
	Accuracy        float64         `json:"accuracySinceLaunch"`
	Cycles          int             `json:"cycles"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewView summarises a state.
func NewView(s State, at time.Time) View {
	v := View{
		Stage:           s.CurrentStage,
		StageTag:        s.LastStageTag,
		Scene:           s.LastScene,
		Paused:          s.Paused,
		SectionIndex:    s.SectionIndex,
		SectionName:     s.SectionName(),
		SectionCategory: s.CurrentCategory,
		SongTimer:       s.LastSongTimer,
		Stats:           s.Stats,
		Accuracy:        s.Stats.Accuracy(),
		Cycles:          s.Cycles,
		UpdatedAt:       at,
	}
	if s.Song != nil {
		v.SongName = s.Song.SongName
		v.ArtistName = s.Song.ArtistName
	}
	if s.Arrangement != nil {
		v.Arrangement = s.Arrangement.Name
	}
	return v
}

// Store holds the latest view and every published variable. The poll loop
// writes it; HTTP handlers and the broadcaster read it.
type Store struct {
	mu   sync.RWMutex
	view View
	vars map[string]any
}

func NewStore() *Store {
	return &Store{
		vars: make(map[string]any),
	}
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Store) SetView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Vars returns a copy of all published variables.
func (s *Store) Vars() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

// Publish stores vars and returns the ones whose value changed.
func (s *Store) Publish(vars []Var) []Var {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []Var
	for _, v := range vars {
		if old, ok := s.vars[v.Key]; ok && reflect.DeepEqual(old, v.Value) {
			continue
		}
		s.vars[v.Key] = v.Value
		changed = append(changed, v)
	}
	return changed
}

// Clear drops every variable, used when the session is reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]any)
}
