// Package instrumenttest provides a scripted in-memory transport for driver
// tests.
package instrumenttest

import (
	"fmt"
	"strings"
	"time"

	"github.com/hb9tf/benchlab/instrument"
)

// Reply is one scripted answer to a query.
type Reply struct {
	Resp string
	Err  error
}

// Transport answers queries from per-command queues. The last reply of a
// queue is repeated once the queue runs dry; unknown queries fail.
type Transport struct {
	Replies   map[string][]Reply
	WriteErrs map[string]error

	// Log holds every command in order, queries prefixed with "?".
	Log    []string
	Closed bool
}

func New() *Transport {
	return &Transport{Replies: map[string][]Reply{}, WriteErrs: map[string]error{}}
}

// On queues replies for cmd.
func (t *Transport) On(cmd string, replies ...Reply) *Transport {
	t.Replies[cmd] = append(t.Replies[cmd], replies...)
	return t
}

// Respond queues plain string answers for cmd.
func (t *Transport) Respond(cmd string, resp ...string) *Transport {
	for _, r := range resp {
		t.On(cmd, Reply{Resp: r})
	}
	return t
}

func (t *Transport) Write(cmd string) error {
	t.Log = append(t.Log, cmd)
	if err, ok := t.WriteErrs[cmd]; ok {
		return instrument.Error{Type: instrument.ErrTransport, Message: cmd, Base: err}
	}
	return nil
}

func (t *Transport) Query(cmd string) (string, error) {
	t.Log = append(t.Log, "?"+cmd)
	q := t.Replies[cmd]
	if len(q) == 0 {
		return "", instrument.Error{Type: instrument.ErrTransport, Message: fmt.Sprintf("no reply scripted for %q", cmd)}
	}
	r := q[0]
	if len(q) > 1 {
		t.Replies[cmd] = q[1:]
	}
	if r.Err != nil {
		return "", instrument.Error{Type: instrument.ErrTransport, Message: cmd, Base: r.Err}
	}
	return r.Resp, nil
}

func (t *Transport) Close() error {
	t.Closed = true
	return nil
}

// Writes returns the written (non query) commands.
func (t *Transport) Writes() []string {
	var out []string
	for _, c := range t.Log {
		if !strings.HasPrefix(c, "?") {
			out = append(out, c)
		}
	}
	return out
}

// Bus maps addresses to transports; other addresses fail to open.
type Bus map[int]*Transport

func (b Bus) Open(addr int) (instrument.Transport, error) {
	t, ok := b[addr]
	if !ok {
		return nil, instrument.Error{Type: instrument.ErrTransport, Message: fmt.Sprintf("no listener at %d", addr)}
	}
	return t, nil
}

// Clock is a fake time source that only advances when slept on.
type Clock struct {
	T     time.Time
	Slept []time.Duration
}

func (c *Clock) Now() time.Time {
	return c.T
}

func (c *Clock) Sleep(d time.Duration) {
	c.Slept = append(c.Slept, d)
	c.T = c.T.Add(d)
}

// Poller returns a poller driven by the clock.
func (c *Clock) Poller(timeout, interval time.Duration) instrument.Poller {
	return instrument.Poller{Timeout: timeout, Interval: interval, Sleep: c.Sleep, Now: c.Now}
}
