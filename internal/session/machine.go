package session

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
)

// ErrUnrecoverable is returned by Step when the session state can no longer
// be trusted. The caller should Reset the machine.
var ErrUnrecoverable = errors.New("session state inconsistent")

// DefaultMinSwitchInterval is the minimum time between two scene switches.
const DefaultMinSwitchInterval = 3 * time.Second

// Action names emitted by the machine. Section actions are built from the
// category name, e.g. "enterSolo" and "leaveRiff".
const (
	ActionEnterTuner             = "enterTuner"
	ActionLeaveTuner             = "leaveTuner"
	ActionSongStart              = "songStart"
	ActionSongEnd                = "songEnd"
	ActionEnterPause             = "enterPause"
	ActionLeavePause             = "leavePause"
	ActionArrangementAvailable   = "ArrangementAvailable"
	ActionNoArrangementAvailable = "NoArrangementAvailable"
)

func enterAction(c SectionCategory) string { return "enter" + c.String() }
func leaveAction(c SectionCategory) string { return "leave" + c.String() }

type CommandKind string

const (
	CmdSwitchScene CommandKind = "switch_scene"
	CmdRunAction   CommandKind = "run_action"
)

// Command is one side effect for the presentation layer.
type Command struct {
	Kind CommandKind `json:"kind"`
	Name string      `json:"name"`
}

func (c Command) String() string { return string(c.Kind) + "(" + c.Name + ")" }

// Var is a derived variable published for external consumers.
type Var struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Cycle is the outcome of one Step. Commands must be executed in order.
type Cycle struct {
	Relevant bool
	Commands []Command
	Vars     []Var
}

func (c *Cycle) run(name string) {
	c.Commands = append(c.Commands, Command{Kind: CmdRunAction, Name: name})
}

func (c *Cycle) switchTo(scene string) {
	c.Commands = append(c.Commands, Command{Kind: CmdSwitchScene, Name: scene})
}

func (c *Cycle) set(key string, value any) {
	c.Vars = append(c.Vars, Var{Key: key, Value: value})
}

// MachineConfig holds everything the machine reads from configuration.
type MachineConfig struct {
	Stages            StageClassifier
	Scenes            Scenes
	Policy            Policy
	Deny              []string
	SceneSwitching    bool
	SectionReactions  bool
	MinSwitchInterval time.Duration
	PauseThreshold    int
	EndTolerance      float64
}

// DefaultMachineConfig returns the settings used when nothing is configured.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		Stages:            StageClassifier{InSongTags: DefaultInSongTags, TunerMarker: DefaultTunerMarker},
		Policy:            PolicyAllow,
		SceneSwitching:    true,
		SectionReactions:  true,
		MinSwitchInterval: DefaultMinSwitchInterval,
		PauseThreshold:    DefaultPauseThreshold,
		EndTolerance:      DefaultEndTolerance,
	}
}

func (c MachineConfig) filter() RelevanceFilter {
	return RelevanceFilter{Policy: c.Policy, Scenes: c.Scenes, Deny: c.Deny}
}

// Machine turns telemetry snapshots into presentation commands. It is not
// safe for concurrent use; a single poll loop owns it.
type Machine struct {
	cfg   MachineConfig
	state State
	now   func() time.Time
}

// NewMachine starts the debounce window immediately: the first scene switch
// waits MinSwitchInterval.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{cfg: cfg, now: time.Now}
	m.Reset()
	return m
}

// SetClock replaces the clock used for switch debouncing and restarts the
// debounce window on it.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
	m.state.debounceFrom = now()
}

// Config returns the active configuration.
func (m *Machine) Config() MachineConfig { return m.cfg }

// SetConfig swaps the configuration while keeping the session.
func (m *Machine) SetConfig(cfg MachineConfig) {
	m.cfg = cfg
	m.state.Pause.Threshold = cfg.PauseThreshold
	m.state.Pause.EndTolerance = cfg.EndTolerance
}

// State returns a copy of the session state.
func (m *Machine) State() State { return m.state }

// Reset recreates the session from scratch.
func (m *Machine) Reset() {
	m.state = newState(NewPauseDetector(m.cfg.PauseThreshold, m.cfg.EndTolerance))
	m.state.debounceFrom = m.now()
}

// Observe records the scene currently shown and reports whether a cycle in
// that scene should be processed.
func (m *Machine) Observe(scene string) bool {
	m.state.LastScene = scene
	return m.cfg.filter().Relevant(scene)
}

// Step processes one snapshot. State is only updated when Step returns a
// nil error.
func (m *Machine) Step(scene string, resp *telemetry.Response) (Cycle, error) {
	if resp == nil {
		return Cycle{}, fmt.Errorf("%w: nil telemetry response", ErrUnrecoverable)
	}
	if !m.Observe(scene) {
		return Cycle{}, nil
	}

	next := m.state
	if next.Arrangement != nil && next.Song == nil {
		return Cycle{}, fmt.Errorf("%w: arrangement %q without song details", ErrUnrecoverable, next.Arrangement.ArrangementID)
	}

	cycle := Cycle{Relevant: true}
	mr := resp.MemoryReadout
	now := m.now()
	timer := mr.SongTimer
	timerAdvanced := timer != next.LastSongTimer

	next.LastStageTag = mr.GameStage
	next.CurrentStage = m.cfg.Stages.Classify(mr.GameStage)

	// Tuner edges fire independently of the stage rules below.
	if next.CurrentStage == InTuner && next.PreviousStage != InTuner {
		cycle.run(ActionEnterTuner)
	}
	if next.CurrentStage != InTuner && next.PreviousStage == InTuner {
		cycle.run(ActionLeaveTuner)
	}

	switch next.CurrentStage {
	case InSong:
		if next.PreviousStage != InSong {
			next.resetSong()
			cycle.run(ActionSongStart)
			m.identify(&next, resp, &cycle)
		} else if m.shouldRetryIdentify(&next, resp) {
			m.identify(&next, resp, &cycle)
		}

		paused := next.Pause.Observe(timer, next.LastSongTimer, resp.Length())
		if m.cfg.Scenes.IsSong(scene) {
			if paused {
				if !next.Paused {
					cycle.run(ActionEnterPause)
					next.Paused = true
				}
				if scene != m.cfg.Scenes.Paused {
					m.switchScene(&next, &cycle, m.cfg.Scenes.Paused, now)
				}
			} else if timerAdvanced && next.Paused {
				cycle.run(ActionLeavePause)
				next.Paused = false
			}
		} else if timerAdvanced {
			if next.Paused || m.inPausedScene(scene) {
				cycle.run(ActionLeavePause)
				next.Paused = false
			}
			m.switchScene(&next, &cycle, m.cfg.Scenes.SongTarget(), now)
		}

		if next.Stats.Observe(mr.NoteData) {
			publishNoteStats(&cycle, mr.NoteData, &next.Stats)
		}

	case Menu:
		if scene != m.cfg.Scenes.Menu {
			m.switchScene(&next, &cycle, m.cfg.Scenes.Menu, now)
		}
		if next.PreviousStage == InSong {
			m.endSong(&next, &cycle)
		}

	case InTuner:
		if next.PreviousStage == InSong {
			m.endSong(&next, &cycle)
		}
	}

	if m.cfg.SectionReactions && next.CurrentStage == InSong && next.Arrangement != nil {
		m.trackSection(&next, &cycle, timer)
	}

	cycle.set("GameStage", next.CurrentStage.String())

	next.PreviousStage = next.CurrentStage
	next.LastSongTimer = timer
	next.PreviousCategory = next.CurrentCategory
	next.Cycles++
	m.state = next
	return cycle, nil
}

func (m *Machine) switchAllowed(s *State, now time.Time) bool {
	return now.Sub(s.debounceFrom) >= m.cfg.MinSwitchInterval
}

// inPausedScene reports whether scene is the one a pause switches to. A
// paused scene shared with the menu says nothing about a pause.
func (m *Machine) inPausedScene(scene string) bool {
	return scene == m.cfg.Scenes.Paused && m.cfg.Scenes.Paused != m.cfg.Scenes.Menu
}

func (m *Machine) switchScene(s *State, c *Cycle, scene string, now time.Time) {
	if !m.cfg.SceneSwitching || scene == "" || !m.switchAllowed(s, now) {
		return
	}
	c.switchTo(scene)
	s.LastSwitchAt = now
	s.debounceFrom = now
	s.LastScene = scene
}

func (m *Machine) shouldRetryIdentify(s *State, resp *telemetry.Response) bool {
	if s.ArrangementIdentified {
		return false
	}
	if resp.MemoryReadout.ArrangementID != s.attemptedArrangement {
		return true
	}
	return s.Song == nil && resp.SongDetails != nil
}

// identify resolves the arrangement being played and publishes the song
// metadata the first time details are available for this song.
func (m *Machine) identify(s *State, resp *telemetry.Response, c *Cycle) {
	id := resp.MemoryReadout.ArrangementID
	s.attemptedArrangement = id

	var (
		arr   *telemetry.Arrangement
		found bool
	)
	err := guard(func() error {
		arr, found = ResolveArrangement(resp.SongDetails, id)
		return nil
	})
	if err != nil {
		log.Printf("[session] resolving arrangement %q: %v", id, err)
		arr, found = nil, false
	}

	if s.Song == nil && resp.SongDetails != nil {
		s.Song = resp.SongDetails
		publishSong(c, s.Song)
	}
	if found && s.Song != resp.SongDetails {
		// Arrangement pointers must stay inside the details we hold.
		s.Song = resp.SongDetails
	}

	s.Arrangement = arr
	s.ArrangementIdentified = found
	s.SectionIndex = -1
	if found {
		c.set("ArrangementName", arr.Name)
		c.set("ArrangementType", arr.Type)
		c.set("Tuning", arr.Tuning.TuningName)
		c.run(ActionArrangementAvailable)
	} else {
		c.run(ActionNoArrangementAvailable)
	}
}

func (m *Machine) endSong(s *State, c *Cycle) {
	if s.CurrentCategory != Default {
		c.run(leaveAction(s.CurrentCategory))
	}
	if s.Paused {
		c.run(ActionLeavePause)
	}
	c.run(ActionSongEnd)
	s.resetSong()
	c.set("SectionName", "")
	c.set("SectionCategory", Default.String())
}

func (m *Machine) trackSection(s *State, c *Cycle, timer float64) {
	var (
		idx     int
		changed bool
	)
	err := guard(func() error {
		var err error
		idx, changed, err = advanceSection(s.Arrangement, s.SectionIndex, timer)
		return err
	})
	if err != nil {
		log.Printf("[session] section tracking: %v", err)
		return
	}
	if !changed {
		return
	}

	s.SectionIndex = idx
	s.CurrentCategory = ClassifySection(s.Arrangement.Sections[idx].Name)
	c.set("SectionName", s.Arrangement.Sections[idx].Name)
	c.set("SectionCategory", s.CurrentCategory.String())
	if s.CurrentCategory != s.PreviousCategory {
		c.run(leaveAction(s.PreviousCategory))
		c.run(enterAction(s.CurrentCategory))
	}
}

// guard runs fn and turns a panic into an error. Game memory reads can be
// incoherent for a frame; one bad reading must not take the loop down.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return fn()
}

func publishSong(c *Cycle, d *telemetry.SongDetails) {
	c.set("SongName", d.SongName)
	c.set("ArtistName", d.ArtistName)
	c.set("AlbumName", d.AlbumName)
	c.set("AlbumYear", d.AlbumYear)
	c.set("SongLength", d.SongLength)
}

func publishNoteStats(c *Cycle, ns telemetry.NoteStats, agg *Aggregator) {
	c.set("Accuracy", ns.Accuracy)
	c.set("CurrentHitStreak", ns.CurrentHitStreak)
	c.set("CurrentMissStreak", ns.CurrentMissStreak)
	c.set("HighestHitStreak", ns.HighestHitStreak)
	c.set("TotalNotes", ns.TotalNotes)
	c.set("TotalNotesHit", ns.TotalNotesHit)
	c.set("TotalNotesMissed", ns.TotalNotesMissed)
	c.set("TotalNotesSinceLaunch", agg.TotalNotes)
	c.set("TotalNotesHitSinceLaunch", agg.TotalNotesHit)
	c.set("TotalNotesMissedSinceLaunch", agg.TotalNotesMissed)
	c.set("AccuracySinceLaunch", agg.Accuracy())
	c.set("HighestHitStreakSinceLaunch", agg.HighestStreak)
}
