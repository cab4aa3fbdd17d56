// Package vizspec finds and validates chart and table specifications embedded
// in model-generated text.
package vizspec

import (
	"encoding/json"
	"fmt"
)

// Kind tags which shape a Spec holds.
type Kind string

const (
	KindChart Kind = "chart"
	KindTable Kind = "table"
)

// ChartType is the drawing style of a chart.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartArea ChartType = "area"
	ChartPie  ChartType = "pie"
)

// ChartTypes lists every chart type in menu order.
var ChartTypes = []ChartType{ChartBar, ChartLine, ChartArea, ChartPie}

// Valid reports whether c is a known chart type.
func (c ChartType) Valid() bool {
	switch c {
	case ChartBar, ChartLine, ChartArea, ChartPie:
		return true
	}
	return false
}

const (
	DefaultXAxis = "name"
	DefaultYAxis = "value"
)

// Row is one chart record. Values are string, json.Number, bool or nil.
type Row map[string]any

// Chart is the chart shape. Absent axes are kept empty; Resolved applies defaults.
type Chart struct {
	Type   ChartType `json:"chartType"`
	Title  string    `json:"title,omitempty"`
	XAxis  string    `json:"xAxis,omitempty"`
	YAxis  string    `json:"yAxis,omitempty"`
	Data   []Row     `json:"chartData"`
	Series []string  `json:"series,omitempty"`
}

// Resolved returns a copy of c with axis defaults applied.
// The data rows are shared with c.
func (c Chart) Resolved() Chart {
	if c.XAxis == "" {
		c.XAxis = DefaultXAxis
	}
	if c.YAxis == "" {
		c.YAxis = DefaultYAxis
	}
	return c
}

// Table is the table shape. Cells are string, json.Number, bool or nil.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// Spec is a validated visualization: exactly one of Chart or Table is set,
// as indicated by Kind.
type Spec struct {
	Kind  Kind
	Chart *Chart
	Table *Table
}

// MarshalJSON encodes the spec in its wire shape with an added "kind" tag.
func (s Spec) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindChart:
		if s.Chart == nil {
			return nil, fmt.Errorf("chart spec without chart")
		}
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			Chart
		}{s.Kind, *s.Chart})
	case KindTable:
		if s.Table == nil {
			return nil, fmt.Errorf("table spec without table")
		}
		return json.Marshal(struct {
			Kind      Kind  `json:"kind"`
			TableData Table `json:"tableData"`
		}{s.Kind, *s.Table})
	default:
		return nil, fmt.Errorf("unknown spec kind %q", s.Kind)
	}
}

// UnmarshalJSON decodes and validates a spec in wire shape. The "kind" tag is
// optional and ignored; the shape decides.
func (s *Spec) UnmarshalJSON(b []byte) error {
	spec, err := Decode(b)
	if err != nil {
		return err
	}
	*s = *spec
	return nil
}
