package session

import "strings"

// Default game-stage tags. Other values reported by the sniffer include
// MainMenu, las_SongList, las_SongOptions and las_tuner.
var (
	DefaultInSongTags  = []string{"las_game", "sas_game"}
	DefaultTunerMarker = "tuner"
)

// StageClassifier maps the raw GameStage tag onto a GameStage. Unknown tags
// classify as Menu so new game screens never break the session.
type StageClassifier struct {
	InSongTags  []string
	TunerMarker string
}

func (c StageClassifier) Classify(tag string) GameStage {
	for _, t := range c.InSongTags {
		if tag == t {
			return InSong
		}
	}
	if c.TunerMarker != "" && strings.Contains(tag, c.TunerMarker) {
		return InTuner
	}
	return Menu
}
