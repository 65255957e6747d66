package instrument

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/gotmc/prologix"
	"github.com/gotmc/prologix/driver/vcp"
)

// Prologix is a GPIB bus behind a Prologix GPIB-USB controller. All
// instruments share the serial port; the controller is re-addressed whenever
// a transport for another instrument is used.
type Prologix struct {
	Port string

	port     *vcp.VCP
	ctrl     *prologix.Controller
	selected int
}

func OpenPrologix(port string) (*Prologix, error) {
	glog.Infof("opening Prologix controller on %s", port)
	v, err := vcp.NewVCP(port)
	if err != nil {
		return nil, Error{Type: ErrTransport, Message: fmt.Sprintf("unable to open serial port %s", port), Base: err}
	}
	return &Prologix{Port: port, port: v, selected: -1}, nil
}

func (p *Prologix) Open(addr int) (Transport, error) {
	if _, err := p.controller(addr); err != nil {
		return nil, err
	}
	return &prologixTransport{bus: p, addr: addr}, nil
}

func (p *Prologix) controller(addr int) (*prologix.Controller, error) {
	if p.ctrl != nil && p.selected == addr {
		return p.ctrl, nil
	}
	c, err := prologix.NewController(p.port, addr, false)
	if err != nil {
		return nil, Error{Type: ErrTransport, Message: fmt.Sprintf("unable to address GPIB instrument %d", addr), Base: err}
	}
	p.ctrl, p.selected = c, addr
	return c, nil
}

// Close discards unread data and releases the serial port.
func (p *Prologix) Close() error {
	if err := p.port.Flush(); err != nil {
		glog.Warningf("error flushing serial port: %s", err)
	}
	return p.port.Close()
}

type prologixTransport struct {
	bus  *Prologix
	addr int
}

func (t *prologixTransport) Write(cmd string) error {
	c, err := t.bus.controller(t.addr)
	if err != nil {
		return err
	}
	if err := c.Command(cmd); err != nil {
		return newTransportError(cmd, err)
	}
	return nil
}

func (t *prologixTransport) Query(cmd string) (string, error) {
	c, err := t.bus.controller(t.addr)
	if err != nil {
		return "", err
	}
	resp, err := c.Query(cmd)
	if err != nil && err != io.EOF {
		return "", newTransportError(cmd, err)
	}
	return resp, nil
}

// Close is a no-op: the serial port belongs to the bus.
func (t *prologixTransport) Close() error {
	return nil
}
