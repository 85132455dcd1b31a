// Package timer measures elapsed time between diagnostic log lines.
package timer

import (
	"log/slog"
	"time"
)

// Timer logs the time elapsed since it was created or last reset.
type Timer struct {
	prefix  string
	log     *slog.Logger
	now     func() time.Time
	startAt time.Time
}

// New starts a timer. A nil logger falls back to slog.Default().
func New(prefix string, log *slog.Logger) *Timer {
	if log == nil {
		log = slog.Default()
	}
	t := &Timer{prefix: prefix, log: log, now: time.Now}
	t.Reset()
	return t
}

// elapsed returns the time since the last reset.
func (t *Timer) elapsed() time.Duration {
	return t.now().Sub(t.startAt)
}

// LogAndReset logs step with the elapsed time at debug level and restarts
// the clock.
func (t *Timer) LogAndReset(step string) time.Duration {
	elapsed := t.elapsed()
	t.log.Debug(t.prefix+":"+step,
		"prefix", t.prefix,
		"step", step,
		"elapsed_seconds", elapsed.Seconds(),
	)
	t.Reset()
	return elapsed
}

// Reset restarts the clock.
func (t *Timer) Reset() {
	t.startAt = t.now()
}
