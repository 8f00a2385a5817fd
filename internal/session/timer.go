package session

import (
	"time"

	"cardroom/internal/config"
)

// turnTimer tracks the clock for one seat awaiting input. Deadlines are
// wall-clock times checked from the match loop tick.
type turnTimer struct {
	seat          int
	deadline      time.Time
	nextReminder  time.Time
	remindersSent int
	pausedAt      time.Time
}

func newTurnTimer(seat int, now time.Time, cfg *config.Config) *turnTimer {
	// The clock arms first: the countdown and the reminder cadence both
	// start after the grace window, not at the moment the turn lands.
	armed := now.Add(time.Duration(cfg.TurnGraceSeconds) * time.Second)
	return &turnTimer{
		seat:         seat,
		deadline:     armed.Add(time.Duration(cfg.TurnDurationSeconds) * time.Second),
		nextReminder: armed.Add(time.Duration(cfg.ReminderIntervalSeconds) * time.Second),
	}
}

// reminderDue reports whether a nudge should go out now and schedules
// the next one.
func (t *turnTimer) reminderDue(now time.Time, cfg *config.Config) bool {
	if t.remindersSent >= cfg.ReminderLimit {
		return false
	}
	if now.Before(t.nextReminder) || !now.Before(t.deadline) {
		return false
	}
	t.remindersSent++
	t.nextReminder = now.Add(time.Duration(cfg.ReminderIntervalSeconds) * time.Second)
	return true
}

func (t *turnTimer) expired(now time.Time) bool {
	return !now.Before(t.deadline)
}

// pause freezes the clock; resume shifts the deadlines by the time spent
// frozen so the seat keeps exactly the remaining time it had.
func (t *turnTimer) pause(now time.Time) {
	if t.pausedAt.IsZero() {
		t.pausedAt = now
	}
}

func (t *turnTimer) resume(now time.Time) {
	if t.pausedAt.IsZero() {
		return
	}
	frozen := now.Sub(t.pausedAt)
	t.deadline = t.deadline.Add(frozen)
	t.nextReminder = t.nextReminder.Add(frozen)
	t.pausedAt = time.Time{}
}

func (t *turnTimer) isPaused() bool {
	return !t.pausedAt.IsZero()
}

func (t *turnTimer) remaining(now time.Time) int {
	if t.isPaused() {
		now = t.pausedAt
	}
	d := t.deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
