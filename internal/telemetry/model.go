package telemetry

// Response is one payload served by the sniffer. The memory readout changes
// every poll; the song details only change when a new song is loaded.
type Response struct {
	MemoryReadout Snapshot     `json:"MemoryReadout"`
	SongDetails   *SongDetails `json:"SongDetails"`
}

// Snapshot is a single reading of the game's memory.
type Snapshot struct {
	SongID        string    `json:"SongId"`
	ArrangementID string    `json:"ArrangementId"`
	GameStage     string    `json:"GameStage"`
	SongTimer     float64   `json:"SongTimer"`
	NoteData      NoteStats `json:"NoteData"`
}

// NoteStats holds the note counters for the song currently being played.
// The struct is comparable so consecutive readings can be checked with ==.
type NoteStats struct {
	Accuracy          float64 `json:"Accuracy"`
	TotalNotes        int     `json:"TotalNotes"`
	TotalNotesHit     int     `json:"TotalNotesHit"`
	TotalNotesMissed  int     `json:"TotalNotesMissed"`
	CurrentHitStreak  int     `json:"CurrentHitStreak"`
	CurrentMissStreak int     `json:"CurrentMissStreak"`
	HighestHitStreak  int     `json:"HighestHitStreak"`
}

type SongDetails struct {
	SongName     string        `json:"SongName"`
	ArtistName   string        `json:"ArtistName"`
	AlbumName    string        `json:"AlbumName"`
	AlbumYear    int           `json:"AlbumYear"`
	SongLength   float64       `json:"SongLength"`
	Arrangements []Arrangement `json:"Arrangements"`
}

// Arrangement is one instrument path through a song. Sections are ordered
// by start time.
type Arrangement struct {
	Name          string    `json:"Name"`
	ArrangementID string    `json:"ArrangementID"`
	Type          string    `json:"type"`
	Tuning        Tuning    `json:"Tuning"`
	Sections      []Section `json:"Sections"`
}

type Tuning struct {
	TuningName string `json:"TuningName"`
}

type Section struct {
	Name      string  `json:"Name"`
	StartTime float64 `json:"StartTime"`
	EndTime   float64 `json:"EndTime"`
}

// Length returns the song length, or 0 when no details were sent.
func (r *Response) Length() float64 {
	if r.SongDetails == nil {
		return 0
	}
	return r.SongDetails.SongLength
}
