package session

import "strings"

// Policy selects which scenes the switcher reacts in.
type Policy string

const (
	PolicyAllow  Policy = "allow"
	PolicyDeny   Policy = "deny"
	PolicyAlways Policy = "always"
)

// ParsePolicy maps a config value onto a Policy. Anything unrecognised
// falls back to PolicyAllow.
func ParsePolicy(s string) Policy {
	p, _ := LookupPolicy(s)
	return p
}

// LookupPolicy is ParsePolicy that also reports whether s was recognised.
// The empty string is recognised as the default.
func LookupPolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow", "allowlist", "allow-list", "whitelist":
		return PolicyAllow, true
	case "deny", "denylist", "deny-list", "blacklist":
		return PolicyDeny, true
	case "always", "always-on", "all":
		return PolicyAlways, true
	default:
		return PolicyAllow, false
	}
}

// RelevanceFilter gates whole cycles on the scene currently shown.
type RelevanceFilter struct {
	Policy Policy
	Scenes Scenes
	Deny   []string
}

func (f RelevanceFilter) Relevant(scene string) bool {
	switch f.Policy {
	case PolicyAlways:
		return true
	case PolicyDeny:
		for _, d := range f.Deny {
			if strings.EqualFold(d, scene) {
				return false
			}
		}
		return true
	default:
		if scene == f.Scenes.Menu || scene == f.Scenes.Paused {
			return true
		}
		return f.Scenes.IsSong(scene)
	}
}

// Scenes names the presentation scenes the switcher moves between. The
// first song scene is the one switched to; the others are recognised as
// already showing the song.
type Scenes struct {
	Menu   string
	Song   []string
	Paused string
}

func (s Scenes) IsSong(scene string) bool {
	for _, name := range s.Song {
		if name == scene {
			return true
		}
	}
	return false
}

// SongTarget returns the scene to switch to when a song is playing.
func (s Scenes) SongTarget() string {
	if len(s.Song) == 0 {
		return ""
	}
	return s.Song[0]
}
