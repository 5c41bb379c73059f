package session

import (
	"encoding/json"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
)

type GameStage int

const (
	Menu GameStage = iota
	InSong
	InTuner
)

var stageNames = map[GameStage]string{
	Menu:    "menu",
	InSong:  "in_song",
	InTuner: "in_tuner",
}

var stageFromName = map[string]GameStage{
	"menu":     Menu,
	"in_song":  InSong,
	"in_tuner": InTuner,
}

func (g GameStage) String() string {
	if s, ok := stageNames[g]; ok {
		return s
	}
	return "unknown"
}

func (g GameStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *GameStage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := stageFromName[s]; ok {
		*g = v
	}
	return nil
}

// SectionCategory is the semantic kind of a song section, derived from its
// name. The String form is used verbatim in enter/leave action names.
type SectionCategory int

const (
	Default SectionCategory = iota
	Solo
	NoGuitar
	Riff
	Bridge
	Breakdown
	Chorus
	Verse
)

var categoryNames = map[SectionCategory]string{
	Default:   "Default",
	Solo:      "Solo",
	NoGuitar:  "NoGuitar",
	Riff:      "Riff",
	Bridge:    "Bridge",
	Breakdown: "Breakdown",
	Chorus:    "Chorus",
	Verse:     "Verse",
}

func (c SectionCategory) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "Default"
}

func (c SectionCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// State is the mutable session entity. One instance lives for the whole
// process run and is only recreated by Machine.Reset.
type State struct {
	CurrentStage  GameStage
	PreviousStage GameStage

	CurrentCategory  SectionCategory
	PreviousCategory SectionCategory

	// Arrangement points into the SongDetails of the response that resolved
	// it. Nil while no arrangement is known.
	Arrangement           *telemetry.Arrangement
	ArrangementIdentified bool
	attemptedArrangement  string
	SectionIndex          int

	Song *telemetry.SongDetails

	LastSongTimer float64
	Pause         PauseDetector
	Paused        bool

	LastScene    string
	LastSwitchAt time.Time
	debounceFrom time.Time
	LastStageTag string
	Cycles       int

	Stats Aggregator
}

func newState(pause PauseDetector) State {
	return State{
		CurrentStage:     Menu,
		PreviousStage:    Menu,
		CurrentCategory:  Default,
		PreviousCategory: Default,
		SectionIndex:     -1,
		Pause:            pause,
	}
}

// SectionName returns the name of the active section, or "" outside of any
// section.
func (s *State) SectionName() string {
	if s.Arrangement == nil || s.SectionIndex < 0 || s.SectionIndex >= len(s.Arrangement.Sections) {
		return ""
	}
	return s.Arrangement.Sections[s.SectionIndex].Name
}

// resetSong drops everything tied to the song that was just played. The
// session-lifetime counters in Stats are kept.
func (s *State) resetSong() {
	s.Arrangement = nil
	s.ArrangementIdentified = false
	s.attemptedArrangement = ""
	s.SectionIndex = -1
	s.CurrentCategory = Default
	s.PreviousCategory = Default
	s.Song = nil
	s.Paused = false
	s.Pause.reset()
	s.Stats.StartSong()
}
