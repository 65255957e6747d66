package main

/*
calibrate measures the attenuation of the external measurement path with the
tracking generator of the HP 8593EM and merges it into the compensation file
used by bench.

Connect the tracking generator output through the attenuator and cabling to
the analyzer input before running it.
*/

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/chart"
	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/config"
	"github.com/hb9tf/benchlab/freq"
	"github.com/hb9tf/benchlab/hp8593em"
	"github.com/hb9tf/benchlab/instrument"
)

const (
	minFreq = 100e3
	maxFreq = 11e9
	// applyTime gives the analyzer time to apply reference level and source
	// power before sweeping.
	applyTime = 500 * time.Millisecond
)

// Flags
var (
	configFile       = flag.String("config", "", "Config file to read (default: ./benchlab.{yaml,json,toml} if present).")
	port             = flag.String("port", "", "Serial port of the Prologix controller (overrides config).")
	addr             = flag.Int("addr", 0, "GPIB address of the analyzer. Discovered when 0.")
	compensationFile = flag.String("compensationFile", "", "Compensation file to update (overrides config).")
	startFreq        = flag.String("start", "", "Start frequency, e.g. 100kHz. Prompted for when empty.")
	endFreq          = flag.String("end", "", "End frequency, e.g. 2.4GHz. Prompted for when empty.")
	imgPath          = flag.String("imgPath", "", "Render the updated compensation table to this PNG/JPEG file.")
)

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Flush()
		glog.Exitf("%s", err)
	}
}

func openAnalyzer(bus *instrument.Prologix, cfg *config.Config) (*hp8593em.Analyzer, error) {
	if *addr > 0 {
		t, err := bus.Open(*addr)
		if err != nil {
			return nil, err
		}
		return hp8593em.New(t), nil
	}
	devices, err := instrument.Discover(bus, instrument.Addresses(cfg.Bus.LowAddress, cfg.Bus.HighAddress), instrument.Registry{
		{Match: hp8593em.Identity, New: func(t instrument.Transport) instrument.Device { return hp8593em.New(t) }},
	}, nil)
	if err != nil {
		return nil, err
	}
	return devices[hp8593em.Identity].(*hp8593em.Analyzer), nil
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Bus.Port = *port
	}
	if *compensationFile != "" {
		cfg.Files.Compensation = *compensationFile
	}

	start, end, err := frequencyRange(freq.NewPrompter(os.Stdin, os.Stdout))
	if err != nil {
		return err
	}

	bus, err := instrument.OpenPrologix(cfg.Bus.Port)
	if err != nil {
		return err
	}
	defer bus.Close()
	sa, err := openAnalyzer(bus, cfg)
	if err != nil {
		return err
	}
	defer sa.Close()
	sa.Poller = cfg.Poller()

	id, err := sa.ID()
	if err != nil {
		return err
	}
	fmt.Printf("Connected to: %s\n", id)
	defer func() {
		if err := sa.TrackingGeneratorOff(); err != nil {
			glog.Warningf("unable to turn off tracking generator: %s", err)
		}
	}()

	points := measure(sa, compensation.GenerateSubRanges(start, end))
	if len(points) == 0 {
		return fmt.Errorf("no compensation points measured, %s left untouched", cfg.Files.Compensation)
	}
	if err := compensation.UpdateFile(cfg.Files.Compensation, points, nil); err != nil {
		return err
	}
	fmt.Printf("\nUpdated %s with %d new points.\n", cfg.Files.Compensation, len(points))

	lowest, highest, _ := compensation.Extremes(points)
	fmt.Println("\n--- Overall Attenuation Summary ---")
	fmt.Printf("Minimum Attenuation: %.2f dB at %s\n", lowest.AttenuationDB, freq.Format(lowest.FrequencyHz))
	fmt.Printf("Maximum Attenuation: %.2f dB at %s\n", highest.AttenuationDB, freq.Format(highest.FrequencyHz))

	if *imgPath != "" {
		return renderTable(cfg.Files.Compensation, *imgPath)
	}
	return nil
}

func frequencyRange(prompt *freq.Prompter) (float64, float64, error) {
	if *startFreq != "" && *endFreq != "" {
		start, err := freq.Parse(*startFreq)
		if err != nil {
			return 0, 0, err
		}
		end, err := freq.Parse(*endFreq)
		if err != nil {
			return 0, 0, err
		}
		if !validRange(start, end) {
			return 0, 0, fmt.Errorf("frequencies must satisfy %s <= start < end <= %s", freq.Format(minFreq), freq.Format(maxFreq))
		}
		return start, end, nil
	}
	for {
		start, err := prompt.Frequency("Enter start frequency (e.g., 100kHz, 1.5GHz): ", minFreq, maxFreq)
		if err != nil {
			return 0, 0, err
		}
		end, err := prompt.Frequency("Enter end frequency (e.g., 2.4GHz, 11GHz): ", minFreq, maxFreq)
		if err != nil {
			return 0, 0, err
		}
		if validRange(start, end) {
			return start, end, nil
		}
		fmt.Fprintln(prompt.Out, "Start frequency must be less than end frequency.")
	}
}

func validRange(start, end float64) bool {
	return minFreq <= start && start < end && end <= maxFreq
}

// measure sweeps each sub range once. A failing sub range is skipped.
func measure(sa *hp8593em.Analyzer, ranges []compensation.Range) []compensation.Point {
	var points []compensation.Point
	for i, r := range ranges {
		fmt.Printf("\n--- Measuring sub-range %d/%d: %s to %s ---\n", i+1, len(ranges), freq.Format(r.Start), freq.Format(r.End))
		p, err := measureRange(sa, r)
		if err != nil {
			glog.Warningf("skipping sub-range %s to %s: %s", freq.Format(r.Start), freq.Format(r.End), err)
			continue
		}
		points = append(points, p...)
	}
	return points
}

func measureRange(sa *hp8593em.Analyzer, r compensation.Range) ([]compensation.Point, error) {
	if err := sa.SetSearchWindow(r.Start, r.End); err != nil {
		return nil, err
	}
	// The analyzer may round the span; the trace covers what it actually set.
	start, err := sa.StartFrequency()
	if err != nil {
		return nil, err
	}
	stop, err := sa.StopFrequency()
	if err != nil {
		return nil, err
	}
	fmt.Printf("  Actual measurement range: %s to %s\n", freq.Format(start), freq.Format(stop))

	if err := sa.SetReferenceLevel(0); err != nil {
		return nil, err
	}
	if err := sa.SetTrackingGeneratorPower(0); err != nil {
		return nil, err
	}
	if err := sa.SetTraceDataFormat("M"); err != nil {
		return nil, err
	}
	sa.Poller.Pause(applyTime)

	if err := sa.SweepAndWait(); err != nil {
		return nil, err
	}
	raw, err := sa.TraceData()
	if err != nil {
		return nil, err
	}
	return compensation.TraceToPoints(start, stop, raw)
}

func renderTable(path, out string) error {
	table := compensation.Load(path, nil)
	var points []chart.Point
	for _, p := range table.Points() {
		points = append(points, chart.Point{FrequencyHz: p.FrequencyHz, Level: p.AttenuationDB})
	}
	res := chart.Render(points, chart.Options{Unit: "dB", AddGrid: true})

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", out, err)
	}
	defer f.Close()
	if err := chart.Encode(f, out, res.Image); err != nil {
		return err
	}
	fmt.Printf("Compensation plot written to %s\n", out)
	return f.Close()
}
