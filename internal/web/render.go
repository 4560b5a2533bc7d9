package web

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/raine/ai-design-team/internal/analysis"
	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/preview"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const shortFormLimit = 280

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var templateFuncs = template.FuncMap{
	"usd": func(v float64) string { return fmt.Sprintf("$%.4f", v) },
}

// renderMarkdown converts model output to HTML. Raw HTML in the source is
// omitted by the renderer.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

type previewItemView struct {
	Name           string       `json:"name"`
	Src            template.URL `json:"-"`
	Caption        string       `json:"caption,omitempty"`
	Warning        string       `json:"warning,omitempty"`
	Column         int          `json:"column"` // Zero-based grid column
	Width          int          `json:"width,omitempty"`
	Height         int          `json:"height,omitempty"`
	Format         string       `json:"format,omitempty"`
	OriginalKB     float64      `json:"originalKB,omitempty"`
	CompressedKB   float64      `json:"compressedKB,omitempty"`
	CompressionPct float64      `json:"compressionPct,omitempty"`
}

// GridColumn is the one-based CSS grid column.
func (v previewItemView) GridColumn() int {
	return v.Column + 1
}

type previewGridView struct {
	Title string            `json:"title"`
	Cols  int               `json:"cols"`
	Rows  int               `json:"rows"`
	Items []previewItemView `json:"items"`
}

func newPreviewGrid(title string, items []preview.Item) *previewGridView {
	if len(items) == 0 {
		return nil
	}
	cols, rows := preview.Grid(len(items))
	grid := &previewGridView{Title: title, Cols: cols, Rows: rows}
	for i, it := range items {
		col := preview.Column(i, cols)
		if it.Err != nil {
			grid.Items = append(grid.Items, previewItemView{Name: it.Name, Warning: it.Warning(), Column: col})
			continue
		}
		res := it.Result
		grid.Items = append(grid.Items, previewItemView{
			Name:           res.Name,
			Column:         col,
			Src:            template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(res.Data)),
			Caption:        res.Caption(),
			Width:          res.Width,
			Height:         res.Height,
			Format:         res.Format,
			OriginalKB:     res.OriginalKB(),
			CompressedKB:   res.CompressedKB(),
			CompressionPct: res.CompressionPct(),
		})
	}
	return grid
}

type sectionView struct {
	Title  string
	HTML   template.HTML
	Error  string
	Usage  llm.Usage
	Cached bool
	Chart  *radarChart
}

type socialView struct {
	ShortFormPost  string
	LongFormPost   string
	ShortFormChars int
	ShortFormLimit int
	Fallback       bool
}

type reportView struct {
	Sections  []sectionView
	Social    *socialView
	Synthesis *sectionView
	Usage     llm.Usage
}

func newSectionView(s analysis.Section) sectionView {
	v := sectionView{Title: s.Title, Error: s.Error, Usage: s.Usage, Cached: s.Cached}
	if !s.Failed() {
		v.HTML = renderMarkdown(s.Text)
	}
	return v
}

func newReportView(r *analysis.Report) *reportView {
	view := &reportView{Usage: r.Usage}
	for _, s := range r.Sections {
		sv := newSectionView(s)
		if s.Category == analysis.CategoryVisual && len(r.Scores) > 0 {
			sv.Chart = newRadarChart(r.Scores)
		}
		view.Sections = append(view.Sections, sv)
	}
	if p := r.SocialPosts; p != nil {
		view.Social = &socialView{
			ShortFormPost:  p.ShortFormPost,
			LongFormPost:   p.LongFormPost,
			ShortFormChars: utf8.RuneCountInString(p.ShortFormPost),
			ShortFormLimit: shortFormLimit,
			Fallback:       p.Fallback(),
		}
	}
	if r.Synthesis != nil {
		sv := newSectionView(*r.Synthesis)
		view.Synthesis = &sv
	}
	return view
}

const (
	chartSize   = 320.0
	chartRadius = 110.0
	chartRings  = 5
)

type radarAxis struct {
	Label  string
	X, Y   float64 // Outer end of the axis line
	LabelX float64
	LabelY float64
	Anchor string
}

// radarChart is a closed polar line chart of the design scores on a 0-10 scale.
type radarChart struct {
	Size   float64
	Center float64
	Rings  []string // Polygon points for each grid ring
	Axes   []radarAxis
	Points string // Polygon points for the scores
	Scores []analysis.Score
}

func newRadarChart(scores []analysis.Score) *radarChart {
	n := len(scores)
	if n < 3 {
		return nil
	}
	c := chartSize / 2
	chart := &radarChart{Size: chartSize, Center: c, Scores: scores}

	angle := func(i int) float64 {
		return 2*math.Pi*float64(i)/float64(n) - math.Pi/2
	}
	point := func(i int, r float64) (float64, float64) {
		return c + r*math.Cos(angle(i)), c + r*math.Sin(angle(i))
	}
	polygon := func(radius func(i int) float64) string {
		pts := make([]string, n)
		for i := range pts {
			x, y := point(i, radius(i))
			pts[i] = fmt.Sprintf("%.1f,%.1f", x, y)
		}
		return strings.Join(pts, " ")
	}

	for ring := 1; ring <= chartRings; ring++ {
		r := chartRadius * float64(ring) / chartRings
		chart.Rings = append(chart.Rings, polygon(func(int) float64 { return r }))
	}

	for i, s := range scores {
		x, y := point(i, chartRadius)
		lx, ly := point(i, chartRadius+18)
		anchor := "middle"
		switch {
		case lx < c-1:
			anchor = "end"
		case lx > c+1:
			anchor = "start"
		}
		chart.Axes = append(chart.Axes, radarAxis{Label: s.Metric, X: x, Y: y, LabelX: lx, LabelY: ly, Anchor: anchor})
	}

	chart.Points = polygon(func(i int) float64 {
		v := math.Max(0, math.Min(scores[i].Value, analysis.MaxScore))
		return chartRadius * v / analysis.MaxScore
	})
	return chart
}
