package main

/*
bench measures the spurious emissions of a transmitter with an HP 8593EM
spectrum analyzer behind a Prologix GPIB controller and appends the peaks
found to the measurement log.
*/

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/config"
	"github.com/hb9tf/benchlab/export"
	"github.com/hb9tf/benchlab/freq"
	"github.com/hb9tf/benchlab/hp8593em"
	"github.com/hb9tf/benchlab/instrument"
	"github.com/hb9tf/benchlab/peak"
)

const (
	minCarrier = 100e3
	maxCarrier = 11e9
	// settleTime gives the analyzer time to apply the new span.
	settleTime = 2 * time.Second
)

// Flags
var (
	configFile       = flag.String("config", "", "Config file to read (default: ./benchlab.{yaml,json,toml} if present).")
	identifier       = flag.String("id", "", "Unique identifier of this bench (default: from config or random UUID).")
	port             = flag.String("port", "", "Serial port of the Prologix controller (overrides config).")
	compensationFile = flag.String("compensationFile", "", "Compensation file to apply (overrides config).")
	logFile          = flag.String("logFile", "", "Measurement log to append to (overrides config).")
	carrierFreq      = flag.String("carrier", "", "Carrier frequency, e.g. 433.92MHz. Prompted for when empty.")
	note             = flag.String("note", "", "Note stored with the measurement. Prompted for when empty.")
	minPower         = flag.Float64("minPower", -200, "Ignore peaks below this level in dBm.")
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

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *identifier != "" {
		cfg.Identifier = *identifier
	}
	if *port != "" {
		cfg.Bus.Port = *port
	}
	if *compensationFile != "" {
		cfg.Files.Compensation = *compensationFile
	}
	if *logFile != "" {
		cfg.Files.Log = *logFile
	}
	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt := freq.NewPrompter(os.Stdin, os.Stdout)
	table := compensation.Load(cfg.Files.Compensation, nil)

	bus, err := instrument.OpenPrologix(cfg.Bus.Port)
	if err != nil {
		return err
	}
	defer bus.Close()

	devices, err := instrument.Discover(bus, instrument.Addresses(cfg.Bus.LowAddress, cfg.Bus.HighAddress), instrument.Registry{
		{Match: hp8593em.Identity, New: func(t instrument.Transport) instrument.Device { return hp8593em.New(t) }},
	}, nil)
	if err != nil {
		return err
	}
	sa := devices[hp8593em.Identity].(*hp8593em.Analyzer)
	defer sa.Close()
	sa.Poller = cfg.Poller()

	id, err := sa.ID()
	if err != nil {
		return err
	}
	fmt.Printf("Connected to: %s\n", id)
	if err := sa.Reset(); err != nil {
		return fmt.Errorf("unable to reset analyzer: %w", err)
	}

	carrier, err := carrierFrequency(prompt)
	if err != nil {
		return err
	}
	ceiling := peak.SearchCeiling(carrier)
	fmt.Printf("\nCarrier Frequency: %s\n", freq.Format(carrier))
	fmt.Printf("Searching for spurious emissions up to %s\n", freq.Format(ceiling))

	if err := sa.SetSearchWindow(peak.SearchFloor, ceiling); err != nil {
		return fmt.Errorf("unable to set search window: %w", err)
	}
	sa.Poller.Pause(settleTime)

	peaks, err := sa.FindPeaks()
	if err != nil {
		return fmt.Errorf("unable to measure peaks: %w", err)
	}
	peaks = peak.Filter(peaks, &peak.FreqFilter{LowHz: peak.SearchFloor, HighHz: ceiling}, &peak.PowerFilter{MinDBm: *minPower})
	if len(peaks) == 0 {
		fmt.Println("No emissions of any sort in the search range were found.")
		return nil
	}

	carrierPeaks, spuriousPeaks := peak.Separate(peaks, carrier)
	printReport(os.Stdout, carrierPeaks, spuriousPeaks, table)

	n := *note
	if n == "" {
		if n, err = prompt.Line("Enter a note for this measurement: "); err != nil && err != io.EOF {
			return err
		}
	}

	measurementLog := &export.CSV{Path: cfg.Files.Log}
	records, err := measurementLog.Append(ctx, carrierPeaks, spuriousPeaks, table, export.AppendOptions{
		Identifier: cfg.Identifier,
		Note:       n,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nAppended %d peaks to %s with measurement index %d.\n", len(records), cfg.Files.Log, records[0].Index)

	exporters, closeExporters, err := cfg.Exporters()
	if err != nil {
		glog.Warningf("unable to set up exporters, measurement is only in %s: %s", cfg.Files.Log, err)
		return nil
	}
	defer closeExporters()
	for _, err := range export.Tee(ctx, records, exporters...) {
		glog.Warningf("export failed: %s", err)
	}
	return nil
}

func carrierFrequency(prompt *freq.Prompter) (float64, error) {
	if *carrierFreq == "" {
		return prompt.Frequency("Enter carrier frequency (e.g., 100kHz, 2.4GHz, 11GHz): ", minCarrier, maxCarrier)
	}
	hz, err := freq.Parse(*carrierFreq)
	if err != nil {
		return 0, err
	}
	if hz < minCarrier || hz > maxCarrier {
		return 0, fmt.Errorf("carrier frequency must be between %s and %s", freq.Format(minCarrier), freq.Format(maxCarrier))
	}
	return hz, nil
}

func printPeak(w io.Writer, p peak.Peak, table *compensation.Table) {
	comp := table.Lookup(p.FrequencyHz)
	fmt.Fprintf(w, "  Frequency: %s, Measured Power: %.2f dBm\n", freq.Format(p.FrequencyHz), p.PowerDBm)
	if comp != 0 {
		corrected := p.PowerDBm - comp
		fmt.Fprintf(w, "  Compensation: %.2f dB\n", comp)
		fmt.Fprintf(w, "  Corrected Power: %.2f dBm = %s\n", corrected, freq.DBmToPowerString(corrected))
	}
}

func printReport(w io.Writer, carrier, spurious []peak.Peak, table *compensation.Table) {
	if len(carrier) > 0 {
		fmt.Fprintln(w, "\n--- Carrier Signal Detected ---")
		for _, p := range carrier {
			printPeak(w, p, table)
		}
	}
	if len(spurious) > 0 {
		fmt.Fprintln(w, "\n--- Spurious Emissions Detected ---")
		for _, p := range spurious {
			printPeak(w, p, table)
		}
	}
	if len(spurious) == 0 && len(carrier) > 0 {
		fmt.Fprintln(w, "\nNo significant spurious emissions found.")
	}
}
