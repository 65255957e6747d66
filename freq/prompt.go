package freq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter asks for values on an interactive terminal.
type Prompter struct {
	In  *bufio.Reader
	Out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: bufio.NewReader(in), Out: out}
}

// Line prints question and returns the trimmed answer. io.EOF is only
// returned when the input ended without an answer.
func (p *Prompter) Line(question string) (string, error) {
	fmt.Fprint(p.Out, question)
	line, err := p.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Frequency asks until the answer parses and lies within [low, high].
func (p *Prompter) Frequency(question string, low, high float64) (float64, error) {
	for {
		line, err := p.Line(question)
		if err != nil {
			return 0, err
		}
		hz, err := Parse(line)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				fmt.Fprintln(p.Out, "Invalid input. Please enter a valid frequency (e.g. '100mhz', '2.4g').")
				continue
			}
			return 0, err
		}
		if hz < low || hz > high {
			fmt.Fprintf(p.Out, "Frequency must be between %s and %s.\n", Format(low), Format(high))
			continue
		}
		return hz, nil
	}
}
