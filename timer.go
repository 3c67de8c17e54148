package nxsqlite

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ExecutionTimer measures statements and reports each duration, with
// the running total, to a logger.
type ExecutionTimer struct {
	logger *slog.Logger // nil disables timing

	mu    sync.Mutex
	total time.Duration
}

// NewExecutionTimer returns a timer logging to logger at debug level.
// A nil logger returns a timer whose Time always returns nil.
func NewExecutionTimer(logger *slog.Logger) *ExecutionTimer {
	return &ExecutionTimer{logger: logger}
}

// Time starts timing msg. It returns nil when timing is disabled;
// otherwise the returned function stops the timer and logs
//
//	Finished <msg >in <n> ms (<total> s total)
func (t *ExecutionTimer) Time(msg string) (stop func()) {
	if t == nil || t.logger == nil {
		return nil
	}
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		t.mu.Lock()
		t.total += elapsed.Truncate(time.Millisecond)
		total := t.total
		t.mu.Unlock()

		if msg != "" {
			msg += " "
		}
		t.logger.Debug(fmt.Sprintf("Finished %sin %d ms (%.1f s total)", msg, elapsed.Milliseconds(), total.Seconds()))
	}
}

// Total returns the time accumulated by stopped timers.
func (t *ExecutionTimer) Total() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
