package report

import "sync"

type EventLevel string

const (
	EventInfo  EventLevel = "info"
	EventWarn  EventLevel = "warn"
	EventError EventLevel = "error"
)

type Event struct {
	Level   EventLevel
	Message string
}

// Report is an ordered list of events. It is not safe for concurrent use;
// workers that share one should go through a Collector.
type Report struct {
	Events []Event
}

func (r *Report) Add(level EventLevel, message string) {
	r.Events = append(r.Events, Event{
		Level:   level,
		Message: message,
	})
}

func (r *Report) Info(message string) {
	r.Add(EventInfo, message)
}

func (r *Report) Warn(message string) {
	r.Add(EventWarn, message)
}

func (r *Report) Error(message string) {
	r.Add(EventError, message)
}

func (r *Report) Merge(other Report) {
	if len(other.Events) == 0 {
		return
	}
	r.Events = append(r.Events, other.Events...)
}

// Messages returns the messages recorded at the given level, in order.
func (r *Report) Messages(level EventLevel) []string {
	var out []string
	for _, e := range r.Events {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Collector is a Report guarded by a mutex.
type Collector struct {
	mu     sync.Mutex
	report Report
}

func (c *Collector) Add(level EventLevel, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Add(level, message)
}

func (c *Collector) Info(message string)  { c.Add(EventInfo, message) }
func (c *Collector) Warn(message string)  { c.Add(EventWarn, message) }
func (c *Collector) Error(message string) { c.Add(EventError, message) }

func (c *Collector) Merge(other Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Merge(other)
}

func (c *Collector) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.Messages(EventWarn)
}

func (c *Collector) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.Messages(EventError)
}

func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}

// Snapshot returns a copy of everything collected so far.
func (c *Collector) Snapshot() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]Event, len(c.report.Events))
	copy(events, c.report.Events)
	return Report{Events: events}
}
