package config

import "testing"

func TestDefaultsAreSane(t *testing.T) {
	c := Default()
	if c.TurnDurationSeconds <= 0 || c.ReminderIntervalSeconds <= 0 {
		t.Fatalf("timing defaults missing: %+v", c)
	}
	if c.ReminderLimit*c.ReminderIntervalSeconds >= c.TurnDurationSeconds {
		t.Fatalf("reminders would outlive the turn clock: %+v", c)
	}
	if c.BotThinkMaxMillis < c.BotThinkMinMillis {
		t.Fatalf("think delay bounds inverted: %+v", c)
	}
	if c.TurnGraceSeconds < 0 {
		t.Fatalf("negative grace: %+v", c)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	base := Default()
	out := base.ApplyEnv(map[string]string{
		"turn_duration_seconds": "45",
		"turn_grace_seconds":    "0",
		"bot_tier":              "heuristic",
		"super_twos":            "true",
		"unknown_key":           "ignored",
	})
	if out.TurnDurationSeconds != 45 {
		t.Errorf("turn duration = %d", out.TurnDurationSeconds)
	}
	if out.TurnGraceSeconds != 0 {
		t.Errorf("grace = %d, zero should disarm it", out.TurnGraceSeconds)
	}
	if out.BotTier != "heuristic" {
		t.Errorf("bot tier = %q", out.BotTier)
	}
	if !out.SuperTwos {
		t.Errorf("super twos not set")
	}
	// The receiver is left untouched.
	if base.TurnDurationSeconds != 75 || base.SuperTwos {
		t.Errorf("ApplyEnv mutated the base config: %+v", base)
	}
}

func TestApplyEnvRejectsGarbageNumbers(t *testing.T) {
	out := Default().ApplyEnv(map[string]string{
		"turn_duration_seconds": "soon",
	})
	if out.TurnDurationSeconds != 75 {
		t.Errorf("garbage override took effect: %d", out.TurnDurationSeconds)
	}
}

func TestFillRepairsBadValues(t *testing.T) {
	c := &Config{
		TurnDurationSeconds: -5,
		BotThinkMinMillis:   1000,
		BotThinkMaxMillis:   200,
	}
	c.fill()
	if c.TurnDurationSeconds != 75 {
		t.Errorf("turn duration = %d", c.TurnDurationSeconds)
	}
	if c.BotThinkMaxMillis != c.BotThinkMinMillis {
		t.Errorf("max think %d below min %d", c.BotThinkMaxMillis, c.BotThinkMinMillis)
	}
	if c.BotTier == "" || c.EmptySessionTTLSeconds <= 0 {
		t.Errorf("defaults not filled: %+v", c)
	}
}

func TestTargetScore(t *testing.T) {
	c := Default()
	if c.TargetScore("spades") != 0 {
		t.Errorf("unset target should fall back to the engine default")
	}
	c.TargetScores = map[string]int{"tienlen": 21}
	if c.TargetScore("tienlen") != 21 {
		t.Errorf("override ignored")
	}
}
