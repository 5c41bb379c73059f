package session

import "github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"

// Aggregator accumulates note counters across every song played since the
// process started. It is a value type so a cycle can work on a copy and
// discard it on failure.
type Aggregator struct {
	TotalNotes       int `json:"totalNotes"`
	TotalNotesHit    int `json:"totalNotesHit"`
	TotalNotesMissed int `json:"totalNotesMissed"`
	HighestStreak    int `json:"highestHitStreak"`

	prev    telemetry.NoteStats
	hasPrev bool
}

// StartSong forgets the previous reading so the next one is taken as
// absolute.
func (a *Aggregator) StartSong() {
	a.prev = telemetry.NoteStats{}
	a.hasPrev = false
}

// Observe folds a reading into the totals. It returns false and changes
// nothing when the reading equals the previous one.
func (a *Aggregator) Observe(ns telemetry.NoteStats) bool {
	if a.hasPrev && ns == a.prev {
		return false
	}

	hit, missed, total := ns.TotalNotesHit, ns.TotalNotesMissed, ns.TotalNotes
	if a.hasPrev {
		dHit := ns.TotalNotesHit - a.prev.TotalNotesHit
		dMissed := ns.TotalNotesMissed - a.prev.TotalNotesMissed
		dTotal := ns.TotalNotes - a.prev.TotalNotes
		// A counter going backwards means the song was restarted.
		if dHit >= 0 && dMissed >= 0 && dTotal >= 0 {
			hit, missed, total = dHit, dMissed, dTotal
		}
	}

	a.TotalNotesHit += hit
	a.TotalNotesMissed += missed
	a.TotalNotes += total
	if ns.HighestHitStreak > a.HighestStreak {
		a.HighestStreak = ns.HighestHitStreak
	}
	a.prev = ns
	a.hasPrev = true
	return true
}

// Accuracy returns the session hit percentage, 0 before any notes.
func (a *Aggregator) Accuracy() float64 {
	if a.TotalNotes == 0 {
		return 0
	}
	return 100 * float64(a.TotalNotesHit) / float64(a.TotalNotes)
}
