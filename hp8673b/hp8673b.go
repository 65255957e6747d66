// Package hp8673b drives an HP 8673B synthesized signal generator.
package hp8673b

import (
	"fmt"
	"strings"

	"github.com/hb9tf/benchlab/instrument"
)

// Identity is the substring of the ID? answer identifying the generator.
const Identity = "8673B"

type Generator struct {
	T instrument.Transport
}

func New(t instrument.Transport) *Generator {
	return &Generator{T: instrument.Logged{Transport: t, Name: Identity}}
}

func (g *Generator) Close() error {
	return g.T.Close()
}

func (g *Generator) Identity() (string, error) {
	id, err := g.T.Query("ID?")
	return strings.TrimSpace(id), err
}

// SetFrequency sets the CW frequency, truncated to whole Hz.
func (g *Generator) SetFrequency(hz float64) error {
	return g.T.Write(fmt.Sprintf("CW %d HZ", int64(hz)))
}

func (g *Generator) SetPower(dbm float64) error {
	return g.T.Write(fmt.Sprintf("PL %.2f DB", dbm))
}

func (g *Generator) EnableRF(on bool) error {
	if on {
		return g.T.Write("RF1")
	}
	return g.T.Write("RF0")
}
