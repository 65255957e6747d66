package instrument

import (
	"fmt"
	"strings"

	"github.com/hb9tf/benchlab/diag"
)

const identityQuery = "ID?"

// Device is an opened instrument driver.
type Device interface {
	Close() error
}

// Entry maps a substring of an instrument identity to its driver.
type Entry struct {
	Match string
	New   func(Transport) Device
}

// Registry is searched in order, so the first matching entry wins.
type Registry []Entry

// Addresses returns the primary GPIB addresses from low to high.
func Addresses(low, high int) []int {
	var addrs []int
	for a := low; a <= high; a++ {
		addrs = append(addrs, a)
	}
	return addrs
}

// Discover queries the identity at every address and opens a driver for each
// registry entry. Unmatched transports are closed; when an entry remains
// unmatched everything opened is closed again and an ErrNotFound is returned.
func Discover(bus Bus, addresses []int, registry Registry, sink diag.Sink) (map[string]Device, error) {
	found := map[string]Device{}
	closeAll := func() {
		for _, d := range found {
			if err := d.Close(); err != nil {
				diag.Warn(sink, "discovery", err, "error closing device")
			}
		}
	}

	wanted := make([]string, 0, len(registry))
	for _, e := range registry {
		wanted = append(wanted, e.Match)
	}
	diag.Infof(sink, "discovery", "searching for %v at GPIB addresses %v", wanted, addresses)

	for _, addr := range addresses {
		if len(found) == len(registry) {
			break
		}
		t, err := bus.Open(addr)
		if err != nil {
			diag.Warn(sink, "discovery", err, "unable to open address %d", addr)
			continue
		}
		id, err := t.Query(identityQuery)
		if err != nil {
			// Nothing listening there.
			t.Close()
			continue
		}
		id = strings.TrimSpace(id)

		matched := false
		for _, e := range registry {
			if _, ok := found[e.Match]; ok || !strings.Contains(id, e.Match) {
				continue
			}
			diag.Infof(sink, "discovery", "found %s at address %d (%s)", e.Match, addr, id)
			found[e.Match] = e.New(t)
			matched = true
			break
		}
		if !matched {
			t.Close()
		}
	}

	for _, e := range registry {
		if _, ok := found[e.Match]; !ok {
			closeAll()
			return nil, Error{Type: ErrNotFound, Message: fmt.Sprintf("could not find device %q", e.Match)}
		}
	}
	return found, nil
}
