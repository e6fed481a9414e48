// Package chart rasterizes OHLCV series into multi-panel candlestick images:
// price candles with MA overlays, volume bars, MACD and KDJ. Rendering is
// serialized behind a single package-wide lock and never propagates a
// failure; callers get an empty path instead.
package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/pkg/indicators"
	"quotebot-api/pkg/market"
)

// renderMu serializes all renders system-wide. One image is drawn at a time;
// concurrent commands queue here.
var renderMu sync.Mutex

var (
	colorBackground = color.RGBA{R: 0x1C, G: 0x1C, B: 0x1C, A: 0xFF}
	colorGrid       = color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF}
	colorText       = color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF}
	colorUpRed      = color.RGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xFF}
	colorDownGreen  = color.RGBA{R: 0x43, G: 0xA0, B: 0x47, A: 0xFF}
	colorYellow     = color.RGBA{R: 0xFF, G: 0xEB, B: 0x3B, A: 0xFF}
	colorMagenta    = color.RGBA{R: 0xE0, G: 0x40, B: 0xFB, A: 0xFF}

	maPalette = []color.RGBA{
		{R: 0x42, G: 0xA5, B: 0xF5, A: 0xFF},
		{R: 0xFF, G: 0xA7, B: 0x26, A: 0xFF},
		{R: 0xAB, G: 0x47, B: 0xBC, A: 0xFF},
	}
)

const maxXLabels = 10

// Composer renders bar series according to a chart style. technical mirrors
// the enable_technical_analysis feature flag: when false the indicator panels
// are dropped even if show_indicators is on.
type Composer struct {
	cfg       *Config
	technical bool
	up        color.RGBA
	down      color.RGBA
}

// NewComposer builds a Composer for the given style.
func NewComposer(cfg *Config, technical bool) *Composer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	up, down := colorUpRed, colorDownGreen
	if cfg.ColorStyle == "green_red" {
		up, down = colorDownGreen, colorUpRed
	}
	return &Composer{cfg: cfg, technical: technical, up: up, down: down}
}

// panel is one horizontal band of the image.
type panel struct {
	top    float64
	bottom float64
}

func (p panel) height() float64 { return p.bottom - p.top }

// Render draws the series into a uniquely named temporary PNG and returns
// its path. The caller owns the file. Any failure, including a panic inside
// the drawing code, is logged and yields "".
func (c *Composer) Render(bars []market.Bar, title string) (path string) {
	renderMu.Lock()
	defer renderMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("chart: render panicked: %v", r)
			path = ""
		}
	}()

	if len(bars) == 0 {
		logx.Infof("chart: nothing to render")
		return ""
	}

	width, height := c.cfg.ChartWidth, c.cfg.ChartHeight
	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackground)
	dc.Clear()
	if c.cfg.FontFile != "" {
		if err := dc.LoadFontFace(c.cfg.FontFile, 13); err != nil {
			logx.Debugf("chart: font %s unavailable, using builtin face: %v", c.cfg.FontFile, err)
		}
	}

	// Panel stack: price 3, volume 1, MACD 1, KDJ 1.
	ratios := []float64{3}
	if c.cfg.ShowVolume {
		ratios = append(ratios, 1)
	}
	showIndicators := c.technical && c.cfg.ShowIndicators
	if showIndicators {
		ratios = append(ratios, 1, 1)
	}
	panels := splitPanels(float64(height), ratios)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(title, float64(width)/2, 14, 0.5, 0.5)

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	c.drawPricePanel(dc, panels[0], bars, closes, highs, lows)
	next := 1
	if c.cfg.ShowVolume {
		c.drawVolumePanel(dc, panels[next], bars, volumes)
		next++
	}
	if showIndicators {
		dif, dea, hist := indicators.MACD(closes)
		c.drawMACDPanel(dc, panels[next], dif, dea, hist)
		k, d, j := indicators.KDJ(closes, highs, lows, 9, 3, 3)
		c.drawKDJPanel(dc, panels[next+1], k, d, j)
	}
	c.drawXAxis(dc, panels[len(panels)-1], bars)

	file, err := os.CreateTemp("", "quote-chart-*.png")
	if err != nil {
		logx.Errorf("chart: create temp file: %v", err)
		return ""
	}
	file.Close()
	if err := dc.SavePNG(file.Name()); err != nil {
		logx.Errorf("chart: save png: %v", err)
		os.Remove(file.Name())
		return ""
	}
	return file.Name()
}

// splitPanels divides the drawable height by the given ratios, leaving room
// for the title strip and x labels.
func splitPanels(height float64, ratios []float64) []panel {
	const topMargin, bottomMargin, gap = 30.0, 60.0, 14.0
	usable := height - topMargin - bottomMargin - gap*float64(len(ratios)-1)
	total := 0.0
	for _, r := range ratios {
		total += r
	}

	panels := make([]panel, 0, len(ratios))
	y := topMargin
	for _, r := range ratios {
		h := usable * r / total
		panels = append(panels, panel{top: y, bottom: y + h})
		y += h + gap
	}
	return panels
}

const (
	leftMargin  = 20.0
	rightMargin = 70.0
)

// slotX returns the center x of bar i when n bars share the plot width.
func slotX(width float64, n, i int) float64 {
	plot := width - leftMargin - rightMargin
	step := plot / float64(n)
	return leftMargin + step*(float64(i)+0.5)
}

func slotWidth(width float64, n int) float64 {
	plot := width - leftMargin - rightMargin
	return plot / float64(n) * 0.8
}

// valueRange finds the finite min/max across the given series, padded 5%.
func valueRange(series ...[]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 0, false
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad, true
}

// scaler maps values onto a panel's pixel band.
func scaler(p panel, lo, hi float64) func(float64) float64 {
	return func(v float64) float64 {
		frac := (v - lo) / (hi - lo)
		return p.bottom - frac*p.height()
	}
}

func (c *Composer) framePanel(dc *gg.Context, p panel, label string) {
	width := float64(dc.Width())
	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	dc.DrawRectangle(leftMargin, p.top, width-leftMargin-rightMargin, p.height())
	dc.Stroke()
	if label != "" {
		dc.SetColor(colorText)
		dc.DrawString(label, leftMargin+4, p.top+14)
	}
}

func (c *Composer) drawPricePanel(dc *gg.Context, p panel, bars []market.Bar, closes, highs, lows []float64) {
	c.framePanel(dc, p, "")
	width := float64(dc.Width())
	n := len(bars)

	maSeries := make(map[int][]float64, len(c.cfg.MAPeriods))
	rangeInput := [][]float64{highs, lows}
	for _, period := range c.cfg.MAPeriods {
		ma := indicators.MA(closes, period)
		maSeries[period] = ma
		rangeInput = append(rangeInput, ma)
	}
	lo, hi, ok := valueRange(rangeInput...)
	if !ok {
		return
	}
	y := scaler(p, lo, hi)
	barW := slotWidth(width, n)

	for i, bar := range bars {
		x := slotX(width, n, i)
		if bar.Close >= bar.Open {
			dc.SetColor(c.up)
		} else {
			dc.SetColor(c.down)
		}
		dc.SetLineWidth(1)
		dc.DrawLine(x, y(bar.High), x, y(bar.Low))
		dc.Stroke()

		top := math.Min(y(bar.Open), y(bar.Close))
		bodyH := math.Abs(y(bar.Open) - y(bar.Close))
		if bodyH < 1 {
			bodyH = 1
		}
		dc.DrawRectangle(x-barW/2, top, barW, bodyH)
		dc.Fill()
	}

	for idx, period := range c.cfg.MAPeriods {
		c.drawLine(dc, p, maSeries[period], y, width, n, maPalette[idx%len(maPalette)])
	}
	c.drawLegendMA(dc, p)
	c.drawScaleLabels(dc, p, lo, hi)
}

func (c *Composer) drawVolumePanel(dc *gg.Context, p panel, bars []market.Bar, volumes []float64) {
	c.framePanel(dc, p, "Volume")
	width := float64(dc.Width())
	n := len(bars)

	maSeries := make(map[int][]float64, len(c.cfg.VolumeMAPeriods))
	rangeInput := [][]float64{volumes, {0}}
	for _, period := range c.cfg.VolumeMAPeriods {
		ma := indicators.MA(volumes, period)
		maSeries[period] = ma
		rangeInput = append(rangeInput, ma)
	}
	lo, hi, ok := valueRange(rangeInput...)
	if !ok {
		return
	}
	y := scaler(p, lo, hi)
	barW := slotWidth(width, n)

	for i, bar := range bars {
		x := slotX(width, n, i)
		if bar.Close >= bar.Open {
			dc.SetColor(c.up)
		} else {
			dc.SetColor(c.down)
		}
		dc.DrawRectangle(x-barW/2, y(bar.Volume), barW, p.bottom-y(bar.Volume))
		dc.Fill()
	}
	for idx, period := range c.cfg.VolumeMAPeriods {
		c.drawLine(dc, p, maSeries[period], y, width, n, maPalette[idx%len(maPalette)])
	}
	c.drawScaleLabels(dc, p, lo, hi)
}

func (c *Composer) drawMACDPanel(dc *gg.Context, p panel, dif, dea, hist []float64) {
	c.framePanel(dc, p, "MACD(12,26,9)")
	if dif == nil {
		return
	}
	width := float64(dc.Width())
	n := len(dif)

	lo, hi, ok := valueRange(dif, dea, hist, []float64{0})
	if !ok {
		return
	}
	y := scaler(p, lo, hi)
	barW := slotWidth(width, n)

	zero := y(0)
	for i, v := range hist {
		if math.IsNaN(v) {
			continue
		}
		x := slotX(width, n, i)
		if v >= 0 {
			dc.SetColor(c.up)
			dc.DrawRectangle(x-barW/2, y(v), barW, zero-y(v))
		} else {
			dc.SetColor(c.down)
			dc.DrawRectangle(x-barW/2, zero, barW, y(v)-zero)
		}
		dc.Fill()
	}
	c.drawLine(dc, p, dif, y, width, n, colorText)
	c.drawLine(dc, p, dea, y, width, n, colorYellow)
	c.drawScaleLabels(dc, p, lo, hi)
}

func (c *Composer) drawKDJPanel(dc *gg.Context, p panel, k, d, j []float64) {
	c.framePanel(dc, p, "KDJ(9,3,3)")
	if k == nil {
		return
	}
	width := float64(dc.Width())
	n := len(k)

	lo, hi, ok := valueRange(k, d, j)
	if !ok {
		return
	}
	y := scaler(p, lo, hi)
	c.drawLine(dc, p, k, y, width, n, colorText)
	c.drawLine(dc, p, d, y, width, n, colorYellow)
	c.drawLine(dc, p, j, y, width, n, colorMagenta)
	c.drawScaleLabels(dc, p, lo, hi)
}

// drawLine plots a series, breaking the stroke across NaN gaps.
func (c *Composer) drawLine(dc *gg.Context, p panel, series []float64, y func(float64) float64, width float64, n int, col color.RGBA) {
	dc.SetColor(col)
	dc.SetLineWidth(1)
	started := false
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if started {
				dc.Stroke()
				started = false
			}
			continue
		}
		x := slotX(width, n, i)
		if !started {
			dc.MoveTo(x, y(v))
			started = true
			continue
		}
		dc.LineTo(x, y(v))
	}
	if started {
		dc.Stroke()
	}
}

func (c *Composer) drawLegendMA(dc *gg.Context, p panel) {
	x := leftMargin + 6
	for idx, period := range c.cfg.MAPeriods {
		dc.SetColor(maPalette[idx%len(maPalette)])
		label := fmt.Sprintf("MA%d", period)
		dc.DrawString(label, x, p.top+14)
		w, _ := dc.MeasureString(label)
		x += w + 12
	}
}

// drawScaleLabels writes the panel's min and max on the right edge.
func (c *Composer) drawScaleLabels(dc *gg.Context, p panel, lo, hi float64) {
	width := float64(dc.Width())
	dc.SetColor(colorText)
	dc.DrawString(formatScale(hi), width-rightMargin+4, p.top+12)
	dc.DrawString(formatScale(lo), width-rightMargin+4, p.bottom-2)
}

func formatScale(v float64) string {
	switch {
	case math.Abs(v) >= 1e8:
		return fmt.Sprintf("%.1f亿", v/1e8)
	case math.Abs(v) >= 1e4:
		return fmt.Sprintf("%.1f万", v/1e4)
	case math.Abs(v) >= 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

// drawXAxis writes at most maxXLabels evenly spaced time labels under the
// bottom panel, rotated 30 degrees, preferring TradeTime over TradeDate.
func (c *Composer) drawXAxis(dc *gg.Context, p panel, bars []market.Bar) {
	width := float64(dc.Width())
	n := len(bars)
	step := n / maxXLabels
	if step < 1 {
		step = 1
	}
	dc.SetColor(colorText)
	for i := 0; i < n; i += step {
		label := bars[i].TradeDate
		if bars[i].TradeTime != "" {
			label = bars[i].TradeTime
		}
		x := slotX(width, n, i)
		yPos := p.bottom + 12
		dc.Push()
		dc.RotateAbout(gg.Radians(-30), x, yPos)
		dc.DrawStringAnchored(label, x, yPos, 1, 0.5)
		dc.Pop()
	}
}
