// Package chart turns validated visualization specs into render models and
// exports tabular data.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/chatdata/internal/vizspec"
)

// Palette assigns colors to series (by position) and pie slices (by row).
var Palette = []string{"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#8884d8", "#82ca9d"}

// SingleSeriesColor colors the only channel of a chart without series.
const SingleSeriesColor = "#8884d8"

// MaxPieRows is the largest data set that may be drawn as a pie.
const MaxPieRows = 10

var (
	ErrNotChart       = errors.New("spec is not a chart")
	ErrNotTable       = errors.New("spec is not a table")
	ErrIneligibleKind = errors.New("chart kind not eligible for this data")
)

// PaletteColor returns the palette entry for index i.
func PaletteColor(i int) string {
	return Palette[i%len(Palette)]
}

// EligibleKinds returns the chart kinds the spec may be drawn as, in menu order.
// Bar, line and area are always eligible for a chart; pie only for at most
// MaxPieRows rows. A table spec has no eligible chart kinds.
func EligibleKinds(spec *vizspec.Spec) []vizspec.ChartType {
	if spec == nil || spec.Kind != vizspec.KindChart || spec.Chart == nil {
		return nil
	}
	kinds := []vizspec.ChartType{vizspec.ChartBar, vizspec.ChartLine, vizspec.ChartArea}
	if len(spec.Chart.Data) <= MaxPieRows {
		kinds = append(kinds, vizspec.ChartPie)
	}
	return kinds
}

// IsEligible reports whether kind is among EligibleKinds(spec).
func IsEligible(spec *vizspec.Spec, kind vizspec.ChartType) bool {
	for _, k := range EligibleKinds(spec) {
		if k == kind {
			return true
		}
	}
	return false
}

// Channel is one drawn series of a bar, line or area chart.
type Channel struct {
	Key   string `json:"key"`
	Color string `json:"color"`
	// Values holds the numeric value per row; nil where the row has none.
	Values []*float64 `json:"values"`
}

// Slice is one pie segment.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Chart is a render model ready for a painting toolkit.
type Chart struct {
	Kind  vizspec.ChartType `json:"kind"`
	Title string            `json:"title,omitempty"`
	XAxis string            `json:"xAxis"`
	YAxis string            `json:"yAxis"`
	// Categories holds the x-axis label per row (bar, line, area).
	Categories []string `json:"categories,omitempty"`
	Channels   []Channel `json:"channels,omitempty"`
	Slices     []Slice   `json:"slices,omitempty"`
}

// Render builds the render model of spec drawn as kind.
func Render(spec *vizspec.Spec, kind vizspec.ChartType) (*Chart, error) {
	if spec == nil || spec.Kind != vizspec.KindChart || spec.Chart == nil {
		return nil, ErrNotChart
	}
	if !IsEligible(spec, kind) {
		return nil, fmt.Errorf("%w: %s with %d rows", ErrIneligibleKind, kind, len(spec.Chart.Data))
	}
	c := spec.Chart.Resolved()
	out := &Chart{Kind: kind, Title: c.Title, XAxis: c.XAxis, YAxis: c.YAxis}

	if kind == vizspec.ChartPie {
		out.Slices = make([]Slice, len(c.Data))
		for i, row := range c.Data {
			v, _ := Number(row[c.YAxis])
			out.Slices[i] = Slice{Label: Label(row[c.XAxis]), Value: v, Color: PaletteColor(i)}
		}
		return out, nil
	}

	out.Categories = make([]string, len(c.Data))
	for i, row := range c.Data {
		out.Categories[i] = Label(row[c.XAxis])
	}
	if len(c.Series) > 0 {
		for i, key := range c.Series {
			out.Channels = append(out.Channels, channel(c.Data, key, PaletteColor(i)))
		}
	} else {
		out.Channels = []Channel{channel(c.Data, c.YAxis, SingleSeriesColor)}
	}
	return out, nil
}

func channel(rows []vizspec.Row, key, color string) Channel {
	ch := Channel{Key: key, Color: color, Values: make([]*float64, len(rows))}
	for i, row := range rows {
		if v, ok := Number(row[key]); ok {
			ch.Values[i] = &v
		}
	}
	return ch
}

// RenderTable echoes the table of spec unchanged.
func RenderTable(spec *vizspec.Spec) (*vizspec.Table, error) {
	if spec == nil || spec.Kind != vizspec.KindTable || spec.Table == nil {
		return nil, ErrNotTable
	}
	return spec.Table, nil
}

// Number converts a scalar to float64. Numeric strings are accepted.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Label formats a scalar for display. Null becomes the empty string.
func Label(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
