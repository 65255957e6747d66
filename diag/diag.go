// Package diag carries recoverable warnings and hard failures out of the
// measurement libraries as structured events instead of console prints.
package diag

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Event is a single diagnostic emitted by a component.
type Event struct {
	Level     Level
	Component string
	Message   string
	Err       error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

type Sink interface {
	Emit(Event)
}

// Glog forwards events to glog. It is used whenever a nil Sink is passed.
type Glog struct{}

func (Glog) Emit(e Event) {
	switch e.Level {
	case Info:
		glog.InfoDepth(2, e.String())
	case Warning:
		glog.WarningDepth(2, e.String())
	default:
		glog.ErrorDepth(2, e.String())
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of the given level were recorded.
func (r *Recorder) Count(l Level) int {
	n := 0
	for _, e := range r.Events() {
		if e.Level == l {
			n++
		}
	}
	return n
}

func orDefault(s Sink) Sink {
	if s == nil {
		return Glog{}
	}
	return s
}

func Infof(s Sink, component, format string, args ...interface{}) {
	orDefault(s).Emit(Event{Level: Info, Component: component, Message: fmt.Sprintf(format, args...)})
}

func Warnf(s Sink, component, format string, args ...interface{}) {
	orDefault(s).Emit(Event{Level: Warning, Component: component, Message: fmt.Sprintf(format, args...)})
}

// Warn emits a warning carrying err.
func Warn(s Sink, component string, err error, format string, args ...interface{}) {
	orDefault(s).Emit(Event{Level: Warning, Component: component, Message: fmt.Sprintf(format, args...), Err: err})
}

func Fail(s Sink, component string, err error, format string, args ...interface{}) {
	orDefault(s).Emit(Event{Level: Error, Component: component, Message: fmt.Sprintf(format, args...), Err: err})
}
