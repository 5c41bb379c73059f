package session

import (
	"testing"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
)

func notes(hit, miss, total int) telemetry.NoteStats {
	return telemetry.NoteStats{TotalNotesHit: hit, TotalNotesMissed: miss, TotalNotes: total}
}

func TestAggregatorFirstCycleIsAbsolute(t *testing.T) {
	var a Aggregator
	a.Observe(notes(10, 2, 12))
	a.Observe(notes(15, 3, 18))

	if a.TotalNotesHit != 15 || a.TotalNotesMissed != 3 || a.TotalNotes != 18 {
		t.Errorf("totals = hit %d miss %d total %d, want 15 3 18",
			a.TotalNotesHit, a.TotalNotesMissed, a.TotalNotes)
	}
}

func TestAggregatorSkipsUnchanged(t *testing.T) {
	var a Aggregator
	if !a.Observe(notes(1, 0, 1)) {
		t.Fatal("first reading should count as changed")
	}
	if a.Observe(notes(1, 0, 1)) {
		t.Error("identical reading reported as changed")
	}
	if a.TotalNotes != 1 {
		t.Errorf("TotalNotes = %d, want 1", a.TotalNotes)
	}
}

func TestAggregatorAcrossSongs(t *testing.T) {
	var a Aggregator
	a.Observe(notes(8, 2, 10))
	a.StartSong()
	a.Observe(notes(3, 1, 4))

	if a.TotalNotes != 14 || a.TotalNotesHit != 11 || a.TotalNotesMissed != 3 {
		t.Errorf("totals = %+v", a)
	}
}

func TestAggregatorNegativeDeltaTreatedAsRestart(t *testing.T) {
	var a Aggregator
	a.Observe(notes(50, 10, 60))
	a.Observe(notes(2, 1, 3)) // counters went backwards: song restarted

	if a.TotalNotes != 63 || a.TotalNotesHit != 52 || a.TotalNotesMissed != 11 {
		t.Errorf("totals = %+v, want total 63 hit 52 miss 11", a)
	}
}

func TestAggregatorHighestStreak(t *testing.T) {
	var a Aggregator
	a.Observe(telemetry.NoteStats{TotalNotes: 5, HighestHitStreak: 5})
	a.Observe(telemetry.NoteStats{TotalNotes: 7, HighestHitStreak: 3})
	a.StartSong()
	a.Observe(telemetry.NoteStats{TotalNotes: 2, HighestHitStreak: 2})

	if a.HighestStreak != 5 {
		t.Errorf("HighestStreak = %d, want 5", a.HighestStreak)
	}
}

func TestAggregatorAccuracy(t *testing.T) {
	var a Aggregator
	if a.Accuracy() != 0 {
		t.Errorf("empty Accuracy() = %v, want 0", a.Accuracy())
	}
	a.Observe(notes(0, 0, 0))
	if a.Accuracy() != 0 {
		t.Errorf("Accuracy() with zero notes = %v, want 0", a.Accuracy())
	}
	a.Observe(notes(3, 1, 4))
	if a.Accuracy() != 75 {
		t.Errorf("Accuracy() = %v, want 75", a.Accuracy())
	}
}
