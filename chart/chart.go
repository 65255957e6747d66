// Package chart renders (frequency, level) series such as sweeps and
// compensation tables to images with a labelled grid.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hb9tf/benchlab/freq"
)

var (
	// Colors defining the gradient used for the markers. The higher the index, the warmer.
	colors = []color.RGBA{
		{0, 0, 255, 255},   // blue
		{0, 255, 255, 255}, // cyan
		{0, 255, 0, 255},   // green
		{255, 255, 0, 255}, // yellow
		{255, 0, 0, 255},   // red
	}

	gridColor       = color.RGBA{0, 0, 0, 255}       // black
	backgroundColor = color.RGBA{255, 255, 255, 255} // white
	lineColor       = color.RGBA{128, 128, 128, 255} // grey
)

const (
	gridMarginTop    = 20  // pixels
	gridMarginBottom = 30  // pixels
	gridMarginLeft   = 80  // pixels
	gridMarginRight  = 20  // pixels
	gridTickLen      = 10  // pixels
	gridMinStepX     = 100 // pixels
	gridMinStepY     = 40  // pixels

	// levelPadding is added above and below the measured levels.
	levelPadding = 5 // dB

	DefaultWidth  = 1024
	DefaultHeight = 600
)

type Point struct {
	FrequencyHz float64
	Level       float64
}

type Options struct {
	Width   int
	Height  int
	// Unit labels the Y axis, e.g. "dBm" or "dB".
	Unit    string
	AddGrid bool
}

// Bounds is the data range covered by the plot area.
type Bounds struct {
	LowHz    float64
	HighHz   float64
	MinLevel float64
	MaxLevel float64
}

// BoundsOf returns the padded range of the points. A single frequency is
// widened so that the plot keeps a non-zero width.
func BoundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{LowHz: 0, HighHz: 1, MinLevel: -levelPadding, MaxLevel: levelPadding}
	}
	b := Bounds{
		LowHz:    math.Inf(1),
		HighHz:   math.Inf(-1),
		MinLevel: math.Inf(1),
		MaxLevel: math.Inf(-1),
	}
	for _, p := range points {
		b.LowHz = math.Min(b.LowHz, p.FrequencyHz)
		b.HighHz = math.Max(b.HighHz, p.FrequencyHz)
		b.MinLevel = math.Min(b.MinLevel, p.Level)
		b.MaxLevel = math.Max(b.MaxLevel, p.Level)
	}
	if b.HighHz == b.LowHz {
		b.LowHz--
		b.HighHz++
	}
	b.MinLevel -= levelPadding
	b.MaxLevel += levelPadding
	return b
}

// GetColor maps a level between 0 and 1 onto the marker gradient.
func GetColor(lvl float64) color.RGBA {
	if lvl <= 0 || math.IsNaN(lvl) {
		return colors[0]
	}
	if lvl >= 1 {
		return colors[len(colors)-1]
	}
	pos := lvl * float64(len(colors)-1)
	i := int(pos)
	fract := pos - float64(i)
	prev, next := colors[i], colors[i+1]
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*fract))
	}
	return color.RGBA{mix(prev.R, next.R), mix(prev.G, next.G), mix(prev.B, next.B), 255}
}

type Result struct {
	Image  *image.RGBA
	Bounds Bounds
	// Plot is the area of the image holding the data.
	Plot   image.Rectangle
}

// Render plots the points, in order, as a line with a marker per point.
func Render(points []Point, opts Options) *Result {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	plot := canvas.Bounds()
	if opts.AddGrid {
		plot = image.Rect(gridMarginLeft, gridMarginTop, opts.Width-gridMarginRight, opts.Height-gridMarginBottom)
	}
	b := BoundsOf(points)
	res := &Result{Image: canvas, Bounds: b, Plot: plot}

	if opts.AddGrid {
		drawGrid(canvas, plot, b, opts.Unit)
	}

	var prev *image.Point
	for _, p := range points {
		pt := res.pixel(p)
		if prev != nil {
			drawLine(canvas, *prev, pt, lineColor)
		}
		prev = &pt
	}
	for _, p := range points {
		lvl := (p.Level - b.MinLevel) / (b.MaxLevel - b.MinLevel)
		drawMarker(canvas, res.pixel(p), GetColor(lvl))
	}
	return res
}

// pixel maps a point into the plot area.
func (r *Result) pixel(p Point) image.Point {
	w := float64(r.Plot.Dx() - 1)
	h := float64(r.Plot.Dy() - 1)
	x := (p.FrequencyHz - r.Bounds.LowHz) / (r.Bounds.HighHz - r.Bounds.LowHz) * w
	y := (r.Bounds.MaxLevel - p.Level) / (r.Bounds.MaxLevel - r.Bounds.MinLevel) * h
	return image.Point{r.Plot.Min.X + int(math.Round(x)), r.Plot.Min.Y + int(math.Round(y))}
}

func drawMarker(canvas *image.RGBA, c image.Point, col color.RGBA) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			canvas.SetRGBA(c.X+dx, c.Y+dy, col)
		}
	}
}

// drawLine draws a straight line using Bresenham's algorithm.
func drawLine(canvas *image.RGBA, a, b image.Point, col color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		canvas.SetRGBA(a.X, a.Y, col)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func findGridStepSize(step int, horizontal bool) int {
	gridMinStep := gridMinStepY
	if horizontal {
		gridMinStep = gridMinStepX
	}
	for step > gridMinStep {
		n := step / 2
		if n < gridMinStep {
			return step
		}
		step = n
	}
	return step
}

func drawString(canvas *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(gridColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawGrid(canvas *image.RGBA, plot image.Rectangle, b Bounds, unit string) {
	// Frame.
	drawTick(canvas, plot.Min, plot.Dx()-1, true)
	drawTick(canvas, image.Point{plot.Min.X, plot.Max.Y - 1}, plot.Dx()-1, true)
	drawTick(canvas, plot.Min, plot.Dy()-1, false)
	drawTick(canvas, image.Point{plot.Max.X - 1, plot.Min.Y}, plot.Dy()-1, false)

	// X ticks below the plot, labelled with the frequency.
	xStep := findGridStepSize(plot.Dx(), true)
	for i := 0; i < plot.Dx(); i += xStep {
		drawTick(canvas, image.Point{plot.Min.X + i, plot.Max.Y}, gridTickLen, false)
		f := b.LowHz + float64(i)/float64(plot.Dx()-1)*(b.HighHz-b.LowHz)
		drawString(canvas, plot.Min.X+i+3, plot.Max.Y+gridTickLen+12, freq.Format(f))
	}

	// Y ticks left of the plot, labelled with the level.
	yStep := findGridStepSize(plot.Dy(), false)
	for i := 0; i < plot.Dy(); i += yStep {
		drawTick(canvas, image.Point{plot.Min.X - gridTickLen, plot.Min.Y + i}, gridTickLen, true)
		lvl := b.MaxLevel - float64(i)/float64(plot.Dy()-1)*(b.MaxLevel-b.MinLevel)
		drawString(canvas, 5, plot.Min.Y+i+4, strings.TrimSpace(fmt.Sprintf("%.1f %s", lvl, unit)))
	}
}

// Encode writes the image as PNG or JPEG depending on the file extension of
// path.
func Encode(w io.Writer, path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		return fmt.Errorf("unsupported image format %q, use .png or .jpg", filepath.Ext(path))
	}
}
