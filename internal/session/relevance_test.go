package session

import "testing"

func testScenes() Scenes {
	return Scenes{
		Menu:   "RocksmithBigCam",
		Song:   []string{"RocksmithInGame", "RocksmithInGameAlt"},
		Paused: "RocksmithPaused",
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"allow", PolicyAllow},
		{"deny", PolicyDeny},
		{" Deny-List ", PolicyDeny},
		{"always", PolicyAlways},
		{"always-on", PolicyAlways},
		{"", PolicyAllow},
		{"sometimes", PolicyAllow},
	}
	for _, tt := range tests {
		if got := ParsePolicy(tt.in); got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelevanceAllowList(t *testing.T) {
	f := RelevanceFilter{Policy: PolicyAllow, Scenes: testScenes()}

	tests := []struct {
		scene string
		want  bool
	}{
		{"RocksmithBigCam", true},
		{"RocksmithInGame", true},
		{"RocksmithInGameAlt", true},
		{"RocksmithPaused", true},
		{"JustChatting", false},
		{"rocksmithbigcam", false}, // allow-list is exact
		{"", false},
	}
	for _, tt := range tests {
		if got := f.Relevant(tt.scene); got != tt.want {
			t.Errorf("allow Relevant(%q) = %v, want %v", tt.scene, got, tt.want)
		}
	}
}

func TestRelevanceDenyList(t *testing.T) {
	f := RelevanceFilter{Policy: PolicyDeny, Scenes: testScenes(), Deny: []string{"BRB", "Starting Soon"}}

	tests := []struct {
		scene string
		want  bool
	}{
		{"BRB", false},
		{"brb", false},
		{"starting soon", false},
		{"JustChatting", true},
		{"RocksmithBigCam", true},
	}
	for _, tt := range tests {
		if got := f.Relevant(tt.scene); got != tt.want {
			t.Errorf("deny Relevant(%q) = %v, want %v", tt.scene, got, tt.want)
		}
	}
}

func TestRelevanceAlwaysOn(t *testing.T) {
	f := RelevanceFilter{Policy: PolicyAlways}
	for _, scene := range []string{"", "anything", "BRB"} {
		if !f.Relevant(scene) {
			t.Errorf("always Relevant(%q) = false", scene)
		}
	}
}

func TestRelevanceUnknownPolicyActsAsAllow(t *testing.T) {
	f := RelevanceFilter{Policy: Policy("bogus"), Scenes: testScenes()}
	if f.Relevant("JustChatting") {
		t.Error("unknown policy should behave like allow-list")
	}
	if !f.Relevant("RocksmithBigCam") {
		t.Error("menu scene should be relevant under default policy")
	}
}

func TestScenesSongTarget(t *testing.T) {
	if got := testScenes().SongTarget(); got != "RocksmithInGame" {
		t.Errorf("SongTarget() = %q", got)
	}
	if got := (Scenes{}).SongTarget(); got != "" {
		t.Errorf("empty SongTarget() = %q", got)
	}
}

func TestLookupPolicy(t *testing.T) {
	if _, ok := LookupPolicy("sometimes"); ok {
		t.Error("unknown policy reported as recognised")
	}
	for _, s := range []string{"", "allow", "Whitelist", "deny", "always"} {
		if _, ok := LookupPolicy(s); !ok {
			t.Errorf("LookupPolicy(%q) not recognised", s)
		}
	}
}
