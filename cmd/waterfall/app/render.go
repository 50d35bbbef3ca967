package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

const (
	dpi      = 72.0
	fontSize = 12.0

	tickMarkHeight = 5
	pixelsPerLabel = 150

	topBorder    = 30
	leftBorder   = 70
	bottomBorder = 30
	rightBorder  = 30
)

var (
	backgroundColor = color.White
	scaleColor      = color.Black
	eventBoxColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// WaterfallData is the assembled spectrogram: one row of power values per
// frame, newest frame last, plus the metadata needed for the scales.
type WaterfallData struct {
	Rows       [][]float64 // power per bin, dB, DC-centered
	Times      []float64   // per-row frame time in seconds
	BinWidth   float64
	SampleRate float64
	Bounds     PowerBounds
}

// Renderer draws waterfall images with frequency/time scales and detected
// event boxes.
type Renderer struct {
	theme   ColorTheme
	context *freetype.Context
}

// NewRenderer creates a renderer for the given color theme.
func NewRenderer(theme ColorTheme) (*Renderer, error) {
	parsedFont, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.NewUniform(scaleColor))
	context.SetHinting(font.HintingFull)

	return &Renderer{theme: theme, context: context}, nil
}

// Render produces the waterfall image: spectrogram area surrounded by
// frequency (top) and time (left) scales, with optional event rectangles.
func (r *Renderer) Render(data *WaterfallData, events []spectrum.Event, drawEvents bool) (*image.RGBA, error) {
	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("no frames to render")
	}

	width := len(data.Rows[0])
	height := len(data.Rows)

	img := image.NewRGBA(image.Rect(0, 0, width+leftBorder+rightBorder, height+topBorder+bottomBorder))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	mapper := NewColorMapper(r.theme, data.Bounds.Min, data.Bounds.Max)
	for y, row := range data.Rows {
		for x, p := range row {
			img.Set(leftBorder+x, topBorder+y, mapper.Color(p))
		}
	}

	if err := r.drawFrequencyScale(img, data, width); err != nil {
		return nil, err
	}
	if err := r.drawTimeScale(img, data, height); err != nil {
		return nil, err
	}

	if drawEvents {
		for _, ev := range events {
			r.drawEventBox(img, data, ev)
		}
	}
	return img, nil
}

func (r *Renderer) drawFrequencyScale(img *image.RGBA, data *WaterfallData, width int) error {
	labels := max(width/pixelsPerLabel, 2)

	for i := 0; i <= labels; i++ {
		x := leftBorder + i*(width-1)/labels
		for y := topBorder - tickMarkHeight; y < topBorder; y++ {
			img.Set(x, y, scaleColor)
		}

		freq := (float64(i)/float64(labels) - 0.5) * data.SampleRate
		if err := r.drawText(img, formatFreq(freq), x-20, topBorder-tickMarkHeight-4); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawTimeScale(img *image.RGBA, data *WaterfallData, height int) error {
	labels := max(height/pixelsPerLabel, 2)

	for i := 0; i <= labels; i++ {
		y := topBorder + i*(height-1)/labels
		for x := leftBorder - tickMarkHeight; x < leftBorder; x++ {
			img.Set(x, y, scaleColor)
		}

		t := data.Times[i*(len(data.Times)-1)/labels]
		if err := r.drawText(img, fmt.Sprintf("%.2fs", t), 5, y+4); err != nil {
			return err
		}
	}
	return nil
}

// drawEventBox outlines one detected event over the spectrogram area.
func (r *Renderer) drawEventBox(img *image.RGBA, data *WaterfallData, ev spectrum.Event) {
	width := len(data.Rows[0])
	height := len(data.Rows)

	binOf := func(freqHz float64) int {
		bin := int(math.Round((freqHz/data.SampleRate + 0.5) * float64(width)))
		return min(max(bin, 0), width-1)
	}
	rowOf := func(t float64) int {
		if len(data.Times) < 2 {
			return 0
		}
		span := data.Times[len(data.Times)-1] - data.Times[0]
		if span <= 0 {
			return 0
		}
		row := int((t - data.Times[0]) / span * float64(height-1))
		return min(max(row, 0), height-1)
	}

	x0 := leftBorder + binOf(ev.CenterFreqHz-ev.BandwidthHz/2) - 1
	x1 := leftBorder + binOf(ev.CenterFreqHz+ev.BandwidthHz/2) + 1
	y0 := topBorder + rowOf(ev.StartTime) - 1
	y1 := topBorder + rowOf(ev.EndTime) + 1

	for x := x0; x <= x1; x++ {
		img.Set(x, y0, eventBoxColor)
		img.Set(x, y1, eventBoxColor)
	}
	for y := y0; y <= y1; y++ {
		img.Set(x0, y, eventBoxColor)
		img.Set(x1, y, eventBoxColor)
	}
}

func (r *Renderer) drawText(img *image.RGBA, text string, x, y int) error {
	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	if _, err := r.context.DrawString(text, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing text: %w", err)
	}
	return nil
}

func formatFreq(hz float64) string {
	switch {
	case math.Abs(hz) >= 1e6:
		return fmt.Sprintf("%+.2fMHz", hz/1e6)
	case math.Abs(hz) >= 1e3:
		return fmt.Sprintf("%+.1fkHz", hz/1e3)
	default:
		return fmt.Sprintf("%+.0fHz", hz)
	}
}
