// Package instrument is the thin layer between the drivers and the GPIB bus:
// a request/response transport, bounded polling and device discovery.
package instrument

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Transport is a synchronous command channel to a single instrument.
type Transport interface {
	Write(cmd string) error
	Query(cmd string) (string, error)
	Close() error
}

// Bus hands out transports for instruments by primary GPIB address.
type Bus interface {
	Open(addr int) (Transport, error)
}

type ErrorType byte

const (
	ErrUnknown ErrorType = iota
	ErrTransport
	ErrTimeout
	ErrNotFound
)

func (t ErrorType) String() string {
	switch t {
	case ErrTransport:
		return "transport"
	case ErrTimeout:
		return "timeout"
	case ErrNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

type Error struct {
	Type    ErrorType
	Message string
	Base    error
}

func (e Error) Error() string {
	switch {
	case e.Message != "" && e.Base != nil:
		return fmt.Sprintf("%s: %s", e.Message, e.Base)
	case e.Message != "":
		return e.Message
	case e.Base != nil:
		return e.Base.Error()
	}
	return fmt.Sprintf("instrument %s error", e.Type)
}

func (e Error) Unwrap() error {
	return e.Base
}

func newTransportError(cmd string, base error) error {
	return Error{Type: ErrTransport, Message: fmt.Sprintf("command %q failed", cmd), Base: base}
}

func isType(err error, t ErrorType) bool {
	var e Error
	return errors.As(err, &e) && e.Type == t
}

func IsTransport(err error) bool { return isType(err, ErrTransport) }
func IsTimeout(err error) bool   { return isType(err, ErrTimeout) }
func IsNotFound(err error) bool  { return isType(err, ErrNotFound) }

// Logged traces every command and response at verbosity 2.
type Logged struct {
	Transport
	Name string
}

func (l Logged) Write(cmd string) error {
	glog.V(2).Infof("%s WRITE: %s", l.Name, cmd)
	return l.Transport.Write(cmd)
}

func (l Logged) Query(cmd string) (string, error) {
	resp, err := l.Transport.Query(cmd)
	glog.V(2).Infof("%s QUERY %q: %s", l.Name, cmd, strings.TrimSpace(resp))
	return resp, err
}
