package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds server-wide tuning for session timing and bot behaviour.
// Zero values are replaced with defaults at load time.
type Config struct {
	// TurnGraceSeconds is the armed window before the visible countdown
	// starts, absorbing normal network and animation latency. Zero
	// starts the clock at once.
	TurnGraceSeconds int `json:"turn_grace_seconds"`
	// TurnDurationSeconds is the full turn clock for a human seat,
	// counted from the end of the grace window.
	TurnDurationSeconds int `json:"turn_duration_seconds"`
	// ReminderIntervalSeconds spaces the nudges sent to a stalled seat.
	ReminderIntervalSeconds int `json:"reminder_interval_seconds"`
	// ReminderLimit caps reminders before the seat times out.
	ReminderLimit int `json:"reminder_limit"`
	// ReconnectGraceSeconds is how long a disconnected seat is held
	// before it may be booted.
	ReconnectGraceSeconds int `json:"reconnect_grace_seconds"`
	// BotThinkMinMillis / BotThinkMaxMillis bound the artificial delay
	// before a server-controlled seat acts.
	BotThinkMinMillis int `json:"bot_think_min_millis"`
	BotThinkMaxMillis int `json:"bot_think_max_millis"`
	// BotTier selects the AI strength for takeover seats.
	BotTier string `json:"bot_tier"`
	// TargetScores override the per-game defaults (keyed by game kind).
	TargetScores map[string]int `json:"target_scores,omitempty"`
	// SuperTwos enables the pair-of-twos instant clear in tien len.
	SuperTwos bool `json:"super_twos"`
	// EmptySessionTTLSeconds is how long a session with no humans is
	// kept before the match terminates.
	EmptySessionTTLSeconds int `json:"empty_session_ttl_seconds"`
}

var (
	cfg      *Config
	loadOnce sync.Once
	loadErr  error
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TurnGraceSeconds:        3,
		TurnDurationSeconds:     75,
		ReminderIntervalSeconds: 15,
		ReminderLimit:           4,
		ReconnectGraceSeconds:   300,
		BotThinkMinMillis:       600,
		BotThinkMaxMillis:       2200,
		BotTier:                 "tracking",
		EmptySessionTTLSeconds:  30,
	}
}

// Load reads the configuration file once. An empty path or a missing file
// leaves the defaults in place.
func Load(path string) error {
	loadOnce.Do(func() {
		c := Default()
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					loadErr = fmt.Errorf("failed to read config: %w", err)
					return
				}
			} else if err := json.Unmarshal(data, c); err != nil {
				loadErr = fmt.Errorf("failed to unmarshal config: %w", err)
				return
			}
		}
		c.fill()
		cfg = c
	})
	return loadErr
}

// Get returns the global configuration, loading defaults if Load was
// never called.
func Get() *Config {
	if cfg == nil {
		_ = Load("")
	}
	return cfg
}

// ApplyEnv overlays runtime environment values onto a copy of the
// configuration. Unknown keys are ignored.
func (c *Config) ApplyEnv(env map[string]string) *Config {
	out := *c
	intVar(env, "turn_grace_seconds", &out.TurnGraceSeconds)
	intVar(env, "turn_duration_seconds", &out.TurnDurationSeconds)
	intVar(env, "reminder_interval_seconds", &out.ReminderIntervalSeconds)
	intVar(env, "reminder_limit", &out.ReminderLimit)
	intVar(env, "reconnect_grace_seconds", &out.ReconnectGraceSeconds)
	intVar(env, "bot_think_min_millis", &out.BotThinkMinMillis)
	intVar(env, "bot_think_max_millis", &out.BotThinkMaxMillis)
	if v, ok := env["bot_tier"]; ok && v != "" {
		out.BotTier = v
	}
	if v, ok := env["super_twos"]; ok {
		out.SuperTwos = v == "true" || v == "1"
	}
	out.fill()
	return &out
}

// TargetScore returns the configured target for a game kind, or 0 when
// the engine default should apply.
func (c *Config) TargetScore(kind string) int {
	return c.TargetScores[kind]
}

func (c *Config) fill() {
	d := Default()
	if c.TurnGraceSeconds < 0 {
		c.TurnGraceSeconds = d.TurnGraceSeconds
	}
	if c.TurnDurationSeconds <= 0 {
		c.TurnDurationSeconds = d.TurnDurationSeconds
	}
	if c.ReminderIntervalSeconds <= 0 {
		c.ReminderIntervalSeconds = d.ReminderIntervalSeconds
	}
	if c.ReminderLimit < 0 {
		c.ReminderLimit = d.ReminderLimit
	}
	if c.ReconnectGraceSeconds <= 0 {
		c.ReconnectGraceSeconds = d.ReconnectGraceSeconds
	}
	if c.BotThinkMinMillis < 0 {
		c.BotThinkMinMillis = d.BotThinkMinMillis
	}
	if c.BotThinkMaxMillis < c.BotThinkMinMillis {
		c.BotThinkMaxMillis = c.BotThinkMinMillis
	}
	if c.BotTier == "" {
		c.BotTier = d.BotTier
	}
	if c.EmptySessionTTLSeconds <= 0 {
		c.EmptySessionTTLSeconds = d.EmptySessionTTLSeconds
	}
}

func intVar(env map[string]string, key string, dst *int) {
	if v, ok := env[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
