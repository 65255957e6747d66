package main

/*
freqsweep measures the frequency response of a device under test: the HP
8673B steps through a set of frequencies and the HP 8593EM, tuned to the
same frequency in zero span, reads the level at each step.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/chart"
	"github.com/hb9tf/benchlab/config"
	"github.com/hb9tf/benchlab/freq"
	"github.com/hb9tf/benchlab/hp8593em"
	"github.com/hb9tf/benchlab/hp8673b"
	"github.com/hb9tf/benchlab/instrument"
	"github.com/hb9tf/benchlab/sweep"
)

const (
	minFreq = 100e3
	maxFreq = 26e9
)

// Flags
var (
	configFile = flag.String("config", "", "Config file to read (default: ./benchlab.{yaml,json,toml} if present).")
	port       = flag.String("port", "", "Serial port of the Prologix controller (overrides config).")
	startFreq  = flag.String("start", "", "Start frequency, e.g. 100MHz. Prompted for when empty.")
	endFreq    = flag.String("end", "", "End frequency, e.g. 2.5GHz. Prompted for when empty.")
	points     = flag.Int("points", -1, "Number of linearly spaced points, 0 for a Halton sequence. Prompted for when negative.")
	power      = flag.Float64("power", 0, "Generator output level in dBm.")
	settle     = flag.Duration("settle", sweep.DefaultSettle, "Wait between tuning and reading the level.")
	csvPath    = flag.String("csvPath", "", "Write the results to this CSV file.")
	imgPath    = flag.String("imgPath", "", "Render the results to this PNG/JPEG file.")
)

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		glog.Flush()
		glog.Exitf("%s", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Bus.Port = *port
	}
	prompt := freq.NewPrompter(os.Stdin, os.Stdout)

	bus, err := instrument.OpenPrologix(cfg.Bus.Port)
	if err != nil {
		return err
	}
	defer bus.Close()

	devices, err := instrument.Discover(bus, instrument.Addresses(cfg.Bus.LowAddress, cfg.Bus.HighAddress), instrument.Registry{
		{Match: hp8593em.Identity, New: func(t instrument.Transport) instrument.Device { return hp8593em.New(t) }},
		{Match: hp8673b.Identity, New: func(t instrument.Transport) instrument.Device { return hp8673b.New(t) }},
	}, nil)
	if err != nil {
		return err
	}
	sa := devices[hp8593em.Identity].(*hp8593em.Analyzer)
	defer sa.Close()
	sa.Poller = cfg.Poller()
	sg := devices[hp8673b.Identity].(*hp8673b.Generator)
	defer sg.Close()
	fmt.Println("Successfully connected to both devices.")

	freqs, err := plan(prompt)
	if err != nil {
		return err
	}
	if *points > 0 {
		fmt.Printf("Performing linear sweep with %d points.\n", *points)
	} else {
		fmt.Printf("Performing Halton sequence sweep with %d points.\n", sweep.HaltonPoints)
	}

	if err := sg.SetPower(*power); err != nil {
		return err
	}
	if err := sg.EnableRF(true); err != nil {
		return err
	}
	defer func() {
		if err := sg.EnableRF(false); err != nil {
			glog.Warningf("unable to turn off generator RF: %s", err)
		}
	}()
	if err := sa.SetZeroSpan(); err != nil {
		return err
	}

	results := sweep.Run(ctx, sg, sa, freqs, *settle, sa.Poller, nil)
	if len(results) == 0 {
		return fmt.Errorf("no results measured")
	}

	fmt.Println("\n--- Final Results ---")
	for _, r := range results {
		fmt.Printf("%.3f MHz: %.2f dBm\n", r.FrequencyHz/1e6, r.PowerDBm)
	}
	return save(results, *csvPath, *imgPath)
}

// plan builds the frequency list from flags, prompting for what is missing.
func plan(prompt *freq.Prompter) ([]float64, error) {
	start, err := frequency(prompt, *startFreq, "Enter start frequency (e.g., 100MHz, 1.5GHz): ")
	if err != nil {
		return nil, err
	}
	end, err := frequency(prompt, *endFreq, "Enter end frequency (e.g., 500MHz, 2.5GHz): ")
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, fmt.Errorf("start frequency %s must be below end frequency %s", freq.Format(start), freq.Format(end))
	}
	if *points < 0 {
		answer, err := prompt.Line("Enter number of points (optional, default is Halton sequence): ")
		if err != nil {
			return nil, err
		}
		*points = 0
		if answer != "" {
			if *points, err = strconv.Atoi(answer); err != nil || *points < 0 {
				return nil, fmt.Errorf("invalid number of points %q", answer)
			}
		}
	}
	return sweep.Plan(start, end, *points), nil
}

func frequency(prompt *freq.Prompter, value, question string) (float64, error) {
	if value == "" {
		return prompt.Frequency(question, minFreq, maxFreq)
	}
	hz, err := freq.Parse(value)
	if err != nil {
		return 0, err
	}
	if hz < minFreq || hz > maxFreq {
		return 0, fmt.Errorf("frequency must be between %s and %s", freq.Format(minFreq), freq.Format(maxFreq))
	}
	return hz, nil
}

func save(results []sweep.Result, csvPath, imgPath string) error {
	if csvPath != "" {
		path, err := sweep.WriteCSV(csvPath, results)
		if err != nil {
			return err
		}
		fmt.Printf("Data saved to %s\n", path)
	}
	if imgPath == "" {
		return nil
	}
	var pts []chart.Point
	for _, r := range results {
		pts = append(pts, chart.Point{FrequencyHz: r.FrequencyHz, Level: r.PowerDBm})
	}
	res := chart.Render(pts, chart.Options{Unit: "dBm", AddGrid: true})
	f, err := os.Create(imgPath)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", imgPath, err)
	}
	defer f.Close()
	if err := chart.Encode(f, imgPath, res.Image); err != nil {
		return err
	}
	fmt.Printf("Plot saved to %s\n", imgPath)
	return f.Close()
}
