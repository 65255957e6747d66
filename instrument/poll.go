package instrument

import (
	"fmt"
	"time"
)

const (
	DefaultTimeout      = 600 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Poller repeats a step with fixed sleeps until it is done or the overall
// timeout has passed.
type Poller struct {
	Timeout  time.Duration
	Interval time.Duration

	Sleep func(time.Duration)
	Now   func() time.Time
}

func (p Poller) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultPollInterval
}

// Pause sleeps for d using the configured sleep function.
func (p Poller) Pause(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (p Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Until calls step until it reports done. When it is not done, step returns
// how many intervals to wait before the next attempt (at least one).
func (p Poller) Until(what string, step func() (done bool, intervals int)) error {
	start := p.now()
	for p.now().Sub(start) < p.timeout() {
		done, intervals := step()
		if done {
			return nil
		}
		if intervals < 1 {
			intervals = 1
		}
		p.Pause(time.Duration(intervals) * p.interval())
	}
	return Error{Type: ErrTimeout, Message: fmt.Sprintf("timed out after %s waiting for %s", p.timeout(), what)}
}
