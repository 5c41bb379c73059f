package session

import (
	"fmt"
	"strings"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
)

type sectionRule struct {
	keyword  string
	category SectionCategory
}

// sectionRules is checked top to bottom and the first hit wins. Section
// names often carry several keywords ("SoloRiff"), so the order matters.
var sectionRules = []sectionRule{
	{"solo", Solo},
	{"noguitar", NoGuitar},
	{"riff", Riff},
	{"bridge", Bridge},
	{"breakdown", Breakdown},
	{"chorus", Chorus},
	{"verse", Verse},
}

// ClassifySection derives the category of a section from its name.
func ClassifySection(name string) SectionCategory {
	lower := strings.ToLower(name)
	for _, r := range sectionRules {
		if strings.Contains(lower, r.keyword) {
			return r.category
		}
	}
	return Default
}

// ResolveArrangement finds the arrangement with the given id. A song
// without a matching arrangement is not an error; section tracking is just
// unavailable for it.
func ResolveArrangement(details *telemetry.SongDetails, id string) (*telemetry.Arrangement, bool) {
	if details == nil {
		return nil, false
	}
	for i := range details.Arrangements {
		if details.Arrangements[i].ArrangementID == id {
			return &details.Arrangements[i], true
		}
	}
	return nil, false
}

// advanceSection moves at most one section forward. At low poll rates a
// short section can be skipped entirely; its enter/leave actions are then
// never fired.
func advanceSection(arr *telemetry.Arrangement, index int, timer float64) (int, bool, error) {
	if arr == nil || len(arr.Sections) == 0 {
		return index, false, nil
	}
	if index < -1 || index >= len(arr.Sections) {
		return index, false, fmt.Errorf("section index %d out of range for %d sections", index, len(arr.Sections))
	}
	if index == -1 {
		if timer >= arr.Sections[0].StartTime {
			return 0, true, nil
		}
		return index, false, nil
	}
	if timer >= arr.Sections[index].EndTime && index+1 < len(arr.Sections) {
		return index + 1, true, nil
	}
	return index, false, nil
}
