// Package progress carries progress events from long-running operations
// (scans and conversions) to whoever is watching: an MCP client, the
// terminal, or the log.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Cadence is how many completed items pass between two progress events.
// The last item always emits regardless of cadence.
const Cadence = 100

// Event is one progress update.
type Event struct {
	Event      string  `json:"event"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

// NewEvent builds an event; percentage is 0 when total is 0.
func NewEvent(name string, current, total int, message string) Event {
	var pct float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	return Event{Event: name, Current: current, Total: total, Percentage: pct, Message: message}
}

// Reporter receives events. Implementations must be safe for concurrent use:
// scanner workers report from several goroutines.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// Multi fans an event out to several reporters. Nil entries are ignored.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return ReporterFunc(func(e Event) {
		for _, r := range rs {
			r.Report(e)
		}
	})
}

// LogReporter writes events to a zap logger at debug level.
func LogReporter(log *zap.SugaredLogger) Reporter {
	return ReporterFunc(func(e Event) {
		log.Debugw("Progress",
			"event", e.Event,
			"current", e.Current,
			"total", e.Total,
			"percentage", e.Percentage,
			"message", e.Message)
	})
}

// Recorder keeps every event it receives. It is used by tests and by callers
// that want the full history after the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report stores e.
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Emitter binds a reporter to an event name. A nil *Emitter, or one built
// with a nil reporter, drops everything.
type Emitter struct {
	name     string
	reporter Reporter
}

// NewEmitter returns an emitter for the named event stream.
func NewEmitter(name string, r Reporter) *Emitter {
	return &Emitter{name: name, reporter: r}
}

// Name returns the event name.
func (e *Emitter) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// Emit sends an update unconditionally.
func (e *Emitter) Emit(current, total int, message string) {
	if e == nil || e.reporter == nil {
		return
	}
	e.reporter.Report(NewEvent(e.name, current, total, message))
}

// Tick sends an update only when done is a multiple of Cadence or the final
// item. It reports whether an event was sent.
func (e *Emitter) Tick(done, total int, message string) bool {
	if done <= 0 || (done%Cadence != 0 && done != total) {
		return false
	}
	e.Emit(done, total, message)
	return true
}

// Complete sends a terminal 100% event.
func (e *Emitter) Complete(message string) {
	if e == nil || e.reporter == nil {
		return
	}
	e.reporter.Report(Event{Event: e.name, Current: 100, Total: 100, Percentage: 100, Message: message})
}

// Error sends a terminal zero event carrying the failure message.
func (e *Emitter) Error(message string) {
	if e == nil || e.reporter == nil {
		return
	}
	e.reporter.Report(Event{Event: e.name, Message: message})
}
