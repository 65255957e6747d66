package main

/*
This application renders sweep results, compensation tables or a measurement
stored in sqlite by the bench exporters to an image.
*/

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/chart"
	"github.com/hb9tf/benchlab/export"
	"github.com/hb9tf/benchlab/freq"
	"github.com/hb9tf/benchlab/sweep"
)

// Flags
var (
	csvFile          = flag.String("csvFile", "", "Two column CSV file (sweep results or compensation table) to render.")
	sqliteFile       = flag.String("sqliteFile", "", "File path of the sqlite DB file to render a measurement from.")
	measurementIndex = flag.Int64("measurement", -1, "Measurement index to render from the sqlite DB. Latest when negative.")
	unit             = flag.String("unit", "dBm", "Unit of the levels, used for the axis labels.")
	imgPath          = flag.String("imgPath", "/tmp/out.png", "Path where the rendered image should be written to.")
	imgWidth         = flag.Int("imgWidth", chart.DefaultWidth, "Width of output image in pixels.")
	imgHeight        = flag.Int("imgHeight", chart.DefaultHeight, "Height of output image in pixels.")
	noGrid           = flag.Bool("noGrid", false, "Render only the data, without grid and labels.")
)

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	ctx := context.Background()

	var (
		points []chart.Point
		err    error
	)
	switch {
	case *csvFile != "":
		points, err = fromCSV(*csvFile)
	case *sqliteFile != "":
		points, err = fromSQLite(ctx, *sqliteFile, *measurementIndex)
	default:
		glog.Exit("one of -csvFile or -sqliteFile is required")
	}
	if err != nil {
		glog.Exit(err)
	}
	if len(points) == 0 {
		glog.Exit("nothing to render")
	}

	res := chart.Render(points, chart.Options{
		Width:   *imgWidth,
		Height:  *imgHeight,
		Unit:    *unit,
		AddGrid: !*noGrid,
	})
	fmt.Println("Selected source metadata:")
	fmt.Printf("  - Points: %d\n", len(points))
	fmt.Printf("  - Low frequency: %s\n", freq.Format(res.Bounds.LowHz))
	fmt.Printf("  - High frequency: %s\n", freq.Format(res.Bounds.HighHz))
	fmt.Printf("Rendering image (%d x %d)\n", res.Image.Bounds().Dx(), res.Image.Bounds().Dy())

	fmt.Printf("Writing image to %q\n", *imgPath)
	if err := writeImage(*imgPath, res.Image); err != nil {
		glog.Exit(err)
	}
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	if err := chart.Encode(f, path, img); err != nil {
		f.Close()
		return fmt.Errorf("unable to write image: %w", err)
	}
	return f.Close()
}

func fromCSV(path string) ([]chart.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	results, err := sweep.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	points := make([]chart.Point, 0, len(results))
	for _, r := range results {
		points = append(points, chart.Point{FrequencyHz: r.FrequencyHz, Level: r.PowerDBm})
	}
	return points, nil
}

// fromSQLite plots the corrected power of every peak of one measurement.
func fromSQLite(ctx context.Context, path string, index int64) ([]chart.Point, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := export.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	store := &export.SQLite{DB: db}

	idx := uint64(index)
	if index < 0 {
		latest, ok, err := store.LatestIndex(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no measurements in %s", path)
		}
		idx = latest
	}
	records, err := store.Measurement(ctx, idx)
	if err != nil {
		return nil, err
	}
	glog.Infof("rendering measurement %d with %d peaks", idx, len(records))
	points := make([]chart.Point, 0, len(records))
	for _, r := range records {
		points = append(points, chart.Point{FrequencyHz: r.FrequencyHz, Level: r.CorrectedPowerDBm})
	}
	return points, nil
}
