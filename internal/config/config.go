package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Sniffer     SnifferConfig     `yaml:"sniffer"`
	OBS         OBSConfig         `yaml:"obs"`
	StreamerBot StreamerBotConfig `yaml:"streamerbot"`
	Scenes      ScenesConfig      `yaml:"scenes"`
	Switching   SwitchingConfig   `yaml:"switching"`
	Sections    SectionsConfig    `yaml:"sections"`
	Pause       PauseConfig       `yaml:"pause"`
	Game        GameConfig        `yaml:"game"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

type ServerConfig struct {
	Port int    `yaml:"port" env:"SWITCHER_SERVER_PORT"`
	Host string `yaml:"host" env:"SWITCHER_SERVER_HOST"`
}

// SnifferConfig addresses the memory-reading HTTP service that exposes
// game telemetry.
type SnifferConfig struct {
	Host    string        `yaml:"host" env:"SWITCHER_SNIFFER_HOST"`
	Port    int           `yaml:"port" env:"SWITCHER_SNIFFER_PORT"`
	Timeout time.Duration `yaml:"timeout" env:"SWITCHER_SNIFFER_TIMEOUT"`
}

type OBSConfig struct {
	URL string `yaml:"url" env:"SWITCHER_OBS_URL"`
}

type StreamerBotConfig struct {
	URL string `yaml:"url" env:"SWITCHER_STREAMERBOT_URL"`
}

type ScenesConfig struct {
	Menu   string   `yaml:"menu" env:"SWITCHER_SCENE_MENU"`
	Song   []string `yaml:"song" env:"SWITCHER_SCENE_SONG"`
	Paused string   `yaml:"paused" env:"SWITCHER_SCENE_PAUSED"`
}

type SwitchingConfig struct {
	Enabled     bool          `yaml:"enabled" env:"SWITCHER_SWITCHING_ENABLED"`
	MinInterval time.Duration `yaml:"min_interval" env:"SWITCHER_MIN_SWITCH_INTERVAL"`
	Relevance   string        `yaml:"relevance" env:"SWITCHER_RELEVANCE"`
	Deny        []string      `yaml:"deny" env:"SWITCHER_DENY_SCENES"`
}

type SectionsConfig struct {
	Enabled bool `yaml:"enabled" env:"SWITCHER_SECTIONS_ENABLED"`
}

type PauseConfig struct {
	Threshold    int     `yaml:"threshold" env:"SWITCHER_PAUSE_THRESHOLD"`
	EndTolerance float64 `yaml:"end_tolerance" env:"SWITCHER_PAUSE_END_TOLERANCE"`
}

// GameConfig holds the raw stage tags the game reports.
type GameConfig struct {
	InSongTags  []string `yaml:"in_song_tags"`
	TunerMarker string   `yaml:"tuner_marker"`
}

type MonitorConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval" env:"SWITCHER_POLL_INTERVAL"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	SnifferProcess    string        `yaml:"sniffer_process" env:"SWITCHER_SNIFFER_PROCESS"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8090,
			Host: "127.0.0.1",
		},
		Sniffer: SnifferConfig{
			Host:    "127.0.0.1",
			Port:    9938,
			Timeout: 2 * time.Second,
		},
		OBS: OBSConfig{
			URL: "ws://127.0.0.1:4455",
		},
		StreamerBot: StreamerBotConfig{
			URL: "ws://127.0.0.1:8080/",
		},
		Scenes: ScenesConfig{
			Menu:   "RocksmithBigCam",
			Song:   []string{"RocksmithBigCamInGame"},
			Paused: "RocksmithBigCam",
		},
		Switching: SwitchingConfig{
			Enabled:     true,
			MinInterval: session.DefaultMinSwitchInterval,
			Relevance:   string(session.PolicyAllow),
		},
		Sections: SectionsConfig{
			Enabled: true,
		},
		Pause: PauseConfig{
			Threshold:    session.DefaultPauseThreshold,
			EndTolerance: session.DefaultEndTolerance,
		},
		Game: GameConfig{
			InSongTags:  append([]string(nil), session.DefaultInSongTags...),
			TunerMarker: session.DefaultTunerMarker,
		},
		Monitor: MonitorConfig{
			PollInterval:      time.Second,
			SnapshotInterval:  5 * time.Second,
			BroadcastThrottle: 100 * time.Millisecond,
			FailureThreshold:  5,
		},
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides fields from SWITCHER_* environment variables. Unset
// variables leave the loaded values alone.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve loads path (or the defaults), applies the environment and
// validates the result.
func Resolve(path string) (*Config, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Sniffer.Host == "" {
		errs = append(errs, errors.New("sniffer.host is required"))
	}
	if c.Sniffer.Port <= 0 || c.Sniffer.Port > 65535 {
		errs = append(errs, fmt.Errorf("sniffer.port %d out of range", c.Sniffer.Port))
	}
	if c.Sniffer.Timeout <= 0 {
		errs = append(errs, errors.New("sniffer.timeout must be positive"))
	}
	if strings.TrimSpace(c.Scenes.Menu) == "" {
		errs = append(errs, errors.New("scenes.menu is required"))
	}
	if len(c.Scenes.Song) == 0 || strings.TrimSpace(c.Scenes.Song[0]) == "" {
		errs = append(errs, errors.New("scenes.song needs at least one scene"))
	}
	if c.Switching.MinInterval < 0 {
		errs = append(errs, errors.New("switching.min_interval must not be negative"))
	}
	if _, ok := session.LookupPolicy(c.Switching.Relevance); !ok {
		errs = append(errs, fmt.Errorf("switching.relevance %q unknown", c.Switching.Relevance))
	}
	if c.Pause.Threshold < 1 {
		errs = append(errs, errors.New("pause.threshold must be at least 1"))
	}
	if c.Pause.EndTolerance < 0 {
		errs = append(errs, errors.New("pause.end_tolerance must not be negative"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be positive"))
	}
	if c.Monitor.FailureThreshold < 1 {
		errs = append(errs, errors.New("monitor.failure_threshold must be at least 1"))
	}
	return errors.Join(errs...)
}

// MachineConfig converts the file settings into what the session machine
// reads.
func (c *Config) MachineConfig() session.MachineConfig {
	return session.MachineConfig{
		Stages: session.StageClassifier{
			InSongTags:  append([]string(nil), c.Game.InSongTags...),
			TunerMarker: c.Game.TunerMarker,
		},
		Scenes: session.Scenes{
			Menu:   c.Scenes.Menu,
			Song:   append([]string(nil), c.Scenes.Song...),
			Paused: c.Scenes.Paused,
		},
		Policy:            session.ParsePolicy(c.Switching.Relevance),
		Deny:              append([]string(nil), c.Switching.Deny...),
		SceneSwitching:    c.Switching.Enabled,
		SectionReactions:  c.Sections.Enabled,
		MinSwitchInterval: c.Switching.MinInterval,
		PauseThreshold:    c.Pause.Threshold,
		EndTolerance:      c.Pause.EndTolerance,
	}
}

// Diff lists the settings that differ between two configs, for logging on
// reload.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(key string, a, b any) {
		if fmt.Sprint(a) != fmt.Sprint(b) {
			changes = append(changes, fmt.Sprintf("%s: %v → %v", key, a, b))
		}
	}

	add("server.host", old.Server.Host, new.Server.Host)
	add("server.port", old.Server.Port, new.Server.Port)
	add("sniffer.host", old.Sniffer.Host, new.Sniffer.Host)
	add("sniffer.port", old.Sniffer.Port, new.Sniffer.Port)
	add("sniffer.timeout", old.Sniffer.Timeout, new.Sniffer.Timeout)
	add("obs.url", old.OBS.URL, new.OBS.URL)
	add("streamerbot.url", old.StreamerBot.URL, new.StreamerBot.URL)
	add("scenes.menu", old.Scenes.Menu, new.Scenes.Menu)
	add("scenes.song", old.Scenes.Song, new.Scenes.Song)
	add("scenes.paused", old.Scenes.Paused, new.Scenes.Paused)
	add("switching.enabled", old.Switching.Enabled, new.Switching.Enabled)
	add("switching.min_interval", old.Switching.MinInterval, new.Switching.MinInterval)
	add("switching.relevance", old.Switching.Relevance, new.Switching.Relevance)
	add("switching.deny", old.Switching.Deny, new.Switching.Deny)
	add("sections.enabled", old.Sections.Enabled, new.Sections.Enabled)
	add("pause.threshold", old.Pause.Threshold, new.Pause.Threshold)
	add("pause.end_tolerance", old.Pause.EndTolerance, new.Pause.EndTolerance)
	add("game.in_song_tags", old.Game.InSongTags, new.Game.InSongTags)
	add("game.tuner_marker", old.Game.TunerMarker, new.Game.TunerMarker)
	add("monitor.poll_interval", old.Monitor.PollInterval, new.Monitor.PollInterval)
	add("monitor.snapshot_interval", old.Monitor.SnapshotInterval, new.Monitor.SnapshotInterval)
	add("monitor.broadcast_throttle", old.Monitor.BroadcastThrottle, new.Monitor.BroadcastThrottle)
	add("monitor.failure_threshold", old.Monitor.FailureThreshold, new.Monitor.FailureThreshold)
	add("monitor.sniffer_process", old.Monitor.SnifferProcess, new.Monitor.SnifferProcess)
	return changes
}

// NeedsRestart reports whether a change touches settings that are only read
// at startup: listen address, sniffer address and actuator endpoints.
func NeedsRestart(old, new *Config) bool {
	return old.Server != new.Server ||
		old.Sniffer != new.Sniffer ||
		old.OBS != new.OBS ||
		old.StreamerBot != new.StreamerBot
}
