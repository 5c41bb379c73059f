// Package mock simulates Rocksmith telemetry so the switcher can run
// without the game or the sniffer.
package mock

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
)

type phaseKind int

const (
	idle phaseKind = iota // timer held at 0
	play                  // timer advances until the phase target
	hold                  // timer frozen where it is
)

type phase struct {
	name  string
	kind  phaseKind
	stage string
	ticks int     // idle and hold
	until float64 // play
	song  bool    // song details and ids are reported
}

const (
	songLength = 60.0
	pauseAt    = 28.0
	// tailAt sits inside the end-of-song tail where the game freezes.
	tailAt = songLength - 0.1

	notesPerTick = 3
	hitRate      = 0.9
)

// script is one play-through: browse, tune, play with a pause in the
// middle, sit on the end screen, back to the song list.
var script = []phase{
	{name: "song list", kind: idle, stage: "las_SongList", ticks: 3},
	{name: "tuner", kind: idle, stage: "las_tuner", ticks: 3, song: true},
	{name: "playing", kind: play, stage: "las_game", until: pauseAt, song: true},
	{name: "paused", kind: hold, stage: "las_game", ticks: 4, song: true},
	{name: "playing", kind: play, stage: "las_game", until: tailAt, song: true},
	{name: "song end", kind: hold, stage: "las_game", ticks: 4, song: true},
	{name: "song list", kind: idle, stage: "las_SongList", ticks: 3},
}

func mockSong() *telemetry.SongDetails {
	sections := []telemetry.Section{
		{Name: "intro", StartTime: 0, EndTime: 6},
		{Name: "verse", StartTime: 6, EndTime: 15},
		{Name: "chorus", StartTime: 15, EndTime: 24},
		{Name: "riff", StartTime: 24, EndTime: 33},
		{Name: "solo", StartTime: 33, EndTime: 45},
		{Name: "noguitar", StartTime: 45, EndTime: 50},
		{Name: "outro", StartTime: 50, EndTime: songLength},
	}
	return &telemetry.SongDetails{
		SongName:   "Mock Song",
		ArtistName: "The Gophers",
		AlbumName:  "Channels",
		AlbumYear:  2012,
		SongLength: songLength,
		Arrangements: []telemetry.Arrangement{
			{Name: "Lead", ArrangementID: "mock-lead", Type: "Lead", Tuning: telemetry.Tuning{TuningName: "E Standard"}, Sections: sections},
			{Name: "Rhythm", ArrangementID: "mock-rhythm", Type: "Rhythm", Tuning: telemetry.Tuning{TuningName: "E Standard"}, Sections: sections},
		},
	}
}

// Game plays the script in a loop. Each Fetch is one tick and returns the
// payload the sniffer would serve at that moment.
type Game struct {
	mu    sync.Mutex
	step  float64
	rng   *rand.Rand
	song  *telemetry.SongDetails
	phase int
	tick  int
	timer float64
	notes telemetry.NoteStats
	loops int
}

// NewGame returns a game whose song timer advances by step seconds per
// Fetch. The seed makes hit/miss sequences reproducible.
func NewGame(step float64, seed int64) *Game {
	if step <= 0 {
		step = 1
	}
	return &Game{
		step: step,
		rng:  rand.New(rand.NewSource(seed)),
		song: mockSong(),
	}
}

func (g *Game) Name() string { return "mock" }

func (g *Game) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return json.Marshal(g.next())
}

// next produces the response for the current tick and moves the script on.
func (g *Game) next() telemetry.Response {
	p := script[g.phase]
	if g.tick == 0 {
		log.Printf("[mock] %s", p.name)
	}

	switch p.kind {
	case idle:
		g.timer = 0
		g.notes = telemetry.NoteStats{}
	case play:
		g.timer = math.Min(g.timer+g.step, p.until)
		g.playNotes()
	}

	resp := telemetry.Response{
		MemoryReadout: telemetry.Snapshot{
			GameStage: p.stage,
			SongTimer: g.timer,
			NoteData:  g.notes,
		},
	}
	if p.song {
		resp.MemoryReadout.SongID = "mock-song"
		resp.MemoryReadout.ArrangementID = "mock-lead"
		resp.SongDetails = g.song
	}

	g.tick++
	if g.phaseDone(p) {
		g.phase = (g.phase + 1) % len(script)
		g.tick = 0
		if g.phase == 0 {
			g.loops++
		}
	}
	return resp
}

func (g *Game) phaseDone(p phase) bool {
	if p.kind == play {
		return g.timer >= p.until
	}
	return g.tick >= p.ticks
}

func (g *Game) playNotes() {
	n := &g.notes
	for i := 0; i < notesPerTick; i++ {
		n.TotalNotes++
		if g.rng.Float64() < hitRate {
			n.TotalNotesHit++
			n.CurrentHitStreak++
			n.CurrentMissStreak = 0
			if n.CurrentHitStreak > n.HighestHitStreak {
				n.HighestHitStreak = n.CurrentHitStreak
			}
		} else {
			n.TotalNotesMissed++
			n.CurrentMissStreak++
			n.CurrentHitStreak = 0
		}
	}
	n.Accuracy = float64(n.TotalNotesHit) / float64(n.TotalNotes) * 100
}
