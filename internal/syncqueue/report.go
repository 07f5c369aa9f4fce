package syncqueue

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Report sums up one drain cycle.
type Report struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Skipped counts abandoned items: they hit MaxRetries and need the user.
	Skipped int `json:"skipped"`
	// Deferred counts items left for a later drain, either still inside
	// their backoff window or queued behind a blocked item of the same id.
	Deferred int `json:"deferred"`
}

func (r *Report) add(o Report) {
	r.Succeeded += o.Succeeded
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Deferred += o.Deferred
}

type Severity int

const (
	SeverityWarning Severity = iota
	// SeverityCritical means some data is stuck and will not sync on its own.
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// Warning is the single aggregated message of a drain that did not fully
// succeed.
type Warning struct {
	Severity Severity
	Message  string
	Report   Report
}

// Warning returns the user-facing warning for r, if any.
func (r Report) Warning() (Warning, bool) {
	switch {
	case r.Skipped > 0 && r.Failed > 0:
		return Warning{
			Severity: SeverityCritical,
			Message: fmt.Sprintf("%d change(s) could not be synced and were given up on; %d more failed and will be retried",
				r.Skipped, r.Failed),
			Report: r,
		}, true
	case r.Skipped > 0:
		return Warning{
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d change(s) could not be synced and were given up on", r.Skipped),
			Report:   r,
		}, true
	case r.Failed > 0:
		return Warning{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d change(s) failed to sync and will be retried", r.Failed),
			Report:   r,
		}, true
	}
	return Warning{}, false
}

// Notifier shows sync warnings to the user.
type Notifier interface {
	Notify(w Warning)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(w Warning)

func (f NotifierFunc) Notify(w Warning) { f(w) }

// LogNotifier writes warnings to a logger, critical ones at error level.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(w Warning) {
	ev := n.Logger.Warn()
	if w.Severity == SeverityCritical {
		ev = n.Logger.Error()
	}
	ev.Int("succeeded", w.Report.Succeeded).
		Int("failed", w.Report.Failed).
		Int("skipped", w.Report.Skipped).
		Msg(w.Message)
}
