// Package report renders aggregate statistics as PNG bar charts and as
// a plain-text table.
package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"rpsbench/server/game"
	"rpsbench/server/stats"
)

type Bar struct {
	Label string
	Value float64
}

const (
	chartW   = 480
	chartH   = 320
	marginL  = 40
	marginR  = 20
	marginT  = 36
	marginB  = 40
	lineH    = 13
	barRatio = 0.6
)

var (
	bg      = color.RGBA{0xff, 0xff, 0xff, 0xff}
	ink     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	gridInk = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
	palette = map[string]color.RGBA{
		game.Rock.String():     {0x8c, 0x6d, 0x46, 0xff},
		game.Paper.String():    {0x4a, 0x90, 0xd9, 0xff},
		game.Scissors.String(): {0xd9, 0x53, 0x4f, 0xff},
		"other":                {0x99, 0x99, 0x99, 0xff},
	}
)

// BarChart draws bars scaled to max (values above are clipped). Each bar
// is labelled below with its name and above with its value.
func BarChart(title string, bars []Bar, max float64, format string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, chartW, chartH))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	plotTop, plotBottom := marginT, chartH-marginB
	plotLeft, plotRight := marginL, chartW-marginR
	for i := 0; i <= 4; i++ {
		y := plotBottom - (plotBottom-plotTop)*i/4
		fillRect(img, plotLeft, y, plotRight, y+1, gridInk)
		drawText(img, 2, y+4, trimFloat(max*float64(i)/4), ink)
	}
	fillRect(img, plotLeft, plotTop, plotLeft+1, plotBottom, ink)

	drawText(img, (chartW-textWidth(title))/2, marginT-14, title, ink)
	if len(bars) == 0 || max <= 0 {
		drawText(img, (chartW-textWidth("no data"))/2, (plotTop+plotBottom)/2, "no data", ink)
		return img
	}

	slot := (plotRight - plotLeft) / len(bars)
	barW := int(float64(slot) * barRatio)
	for i, b := range bars {
		v := math.Max(0, math.Min(b.Value, max))
		h := int(float64(plotBottom-plotTop) * v / max)
		x0 := plotLeft + i*slot + (slot-barW)/2
		col, ok := palette[b.Label]
		if !ok {
			col = palette["other"]
		}
		fillRect(img, x0, plotBottom-h, x0+barW, plotBottom, col)

		label := fmt.Sprintf(format, b.Value)
		drawText(img, x0+(barW-textWidth(label))/2, plotBottom-h-3, label, ink)
		drawText(img, x0+(barW-textWidth(b.Label))/2, plotBottom+lineH+2, b.Label, ink)
	}
	return img
}

// ShareBars are choice shares in percent, "other" last.
func ShareBars(s stats.Summary) []Bar {
	bars := make([]Bar, 0, 4)
	for _, c := range game.All() {
		bars = append(bars, Bar{Label: c.String(), Value: 100 * s.Share(c)})
	}
	return append(bars, Bar{Label: "other", Value: 100 * s.OtherShare()})
}

// ProbBars are averaged first-token probabilities; choices without any
// matching candidate are left out.
func ProbBars(s stats.Summary) []Bar {
	var bars []Bar
	for _, c := range game.All() {
		if p, ok := s.Probs[c]; ok {
			bars = append(bars, Bar{Label: c.String(), Value: p.Mean})
		}
	}
	return bars
}

// WriteCharts writes a share chart and a probability chart for every
// scenario and for the overall group. It returns the files written.
func WriteCharts(dir string, rep stats.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	groups := append([]stats.Summary{rep.Overall}, rep.Scenarios...)
	var written []string
	for _, s := range groups {
		for _, kind := range []string{"counts", "probs"} {
			img := Chart(s, kind)
			path := filepath.Join(dir, Slug(s.Label)+"_"+kind+".png")
			if err := writePNG(path, img); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// Chart renders one group. kind is "counts" or "probs".
func Chart(s stats.Summary, kind string) *image.RGBA {
	if kind == "probs" {
		return BarChart(fmt.Sprintf("%s: avg first-token probability", s.Label), ProbBars(s), 1, "%.3f")
	}
	return BarChart(fmt.Sprintf("%s: choice share (n=%d)", s.Label, s.Total), ShareBars(s), 100, "%.1f%%")
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// Slug turns a group label into a file-name-safe token.
func Slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
