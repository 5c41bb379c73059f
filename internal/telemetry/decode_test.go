package telemetry

import (
	"errors"
	"strings"
	"testing"
)

const fullPayload = `{
  "MemoryReadout": {
    "SongId": "SmokeOnTheWater",
    "ArrangementId": "ARR-LEAD",
    "GameStage": "las_game",
    "SongTimer": 42.5,
    "NoteData": {
      "Accuracy": 91.5,
      "TotalNotes": 120,
      "TotalNotesHit": 110,
      "TotalNotesMissed": 10,
      "CurrentHitStreak": 14,
      "CurrentMissStreak": 0,
      "HighestHitStreak": 40
    }
  },
  "SongDetails": {
    "SongName": "Smoke on the Water",
    "ArtistName": "Deep Purple",
    "AlbumName": "Machine Head",
    "AlbumYear": 1972,
    "SongLength": 340.2,
    "Arrangements": [
      {
        "Name": "Lead",
        "ArrangementID": "ARR-LEAD",
        "type": "Lead",
        "Tuning": {"TuningName": "E Standard"},
        "Sections": [
          {"Name": "intro", "StartTime": 0, "EndTime": 12.1},
          {"Name": "riff", "StartTime": 12.1, "EndTime": 40.0}
        ]
      }
    ]
  }
}`

func TestDecodeFullPayload(t *testing.T) {
	resp, err := Decode([]byte(fullPayload))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	mr := resp.MemoryReadout
	if mr.SongID != "SmokeOnTheWater" {
		t.Errorf("SongID = %q, want %q", mr.SongID, "SmokeOnTheWater")
	}
	if mr.GameStage != "las_game" {
		t.Errorf("GameStage = %q, want %q", mr.GameStage, "las_game")
	}
	if mr.SongTimer != 42.5 {
		t.Errorf("SongTimer = %v, want 42.5", mr.SongTimer)
	}
	if mr.NoteData.TotalNotesHit != 110 || mr.NoteData.HighestHitStreak != 40 {
		t.Errorf("NoteData = %+v", mr.NoteData)
	}

	if resp.SongDetails == nil {
		t.Fatal("SongDetails is nil")
	}
	if resp.Length() != 340.2 {
		t.Errorf("Length() = %v, want 340.2", resp.Length())
	}
	arr := resp.SongDetails.Arrangements[0]
	if arr.Type != "Lead" || arr.Tuning.TuningName != "E Standard" {
		t.Errorf("arrangement = %+v", arr)
	}
	if len(arr.Sections) != 2 || arr.Sections[1].Name != "riff" {
		t.Errorf("sections = %+v", arr.Sections)
	}
}

func TestDecodeOptionalFieldsDefault(t *testing.T) {
	resp, err := Decode([]byte(`{"MemoryReadout":{"SongId":"","ArrangementId":"","GameStage":"MainMenu"}}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if resp.MemoryReadout.SongTimer != 0 {
		t.Errorf("SongTimer = %v, want 0", resp.MemoryReadout.SongTimer)
	}
	if resp.MemoryReadout.NoteData != (NoteStats{}) {
		t.Errorf("NoteData = %+v, want zero", resp.MemoryReadout.NoteData)
	}
	if resp.SongDetails != nil {
		t.Errorf("SongDetails = %+v, want nil", resp.SongDetails)
	}
	if resp.Length() != 0 {
		t.Errorf("Length() = %v, want 0", resp.Length())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{"not_json", `{"MemoryReadout":`, "invalid JSON"},
		{"no_readout", `{"SongDetails":{}}`, "missing MemoryReadout"},
		{"readout_not_object", `{"MemoryReadout":[]}`, "missing MemoryReadout"},
		{"missing_song_id", `{"MemoryReadout":{"ArrangementId":"a","GameStage":"las_game"}}`, "MemoryReadout.SongId"},
		{"missing_arrangement", `{"MemoryReadout":{"SongId":"s","GameStage":"las_game"}}`, "MemoryReadout.ArrangementId"},
		{"missing_stage", `{"MemoryReadout":{"SongId":"s","ArrangementId":"a"}}`, "MemoryReadout.GameStage"},
		{"null_stage", `{"MemoryReadout":{"SongId":"s","ArrangementId":"a","GameStage":null}}`, "MemoryReadout.GameStage"},
		{"numeric_stage", `{"MemoryReadout":{"SongId":"s","ArrangementId":"a","GameStage":3}}`, "want string"},
		{"bad_timer_type", `{"MemoryReadout":{"SongId":"s","ArrangementId":"a","GameStage":"x","SongTimer":"soon"}}`, "SongTimer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("error %v does not wrap ErrDecode", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
