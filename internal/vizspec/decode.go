package vizspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidSpec is wrapped by every decode failure.
var ErrInvalidSpec = errors.New("invalid visualization spec")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}

// Decode parses raw as a visualization object and checks it against the chart
// and table shapes. Field types from the generator are never trusted: each
// field is decoded and checked on its own.
func Decode(raw []byte) (*Spec, error) {
	var obj map[string]json.RawMessage
	if err := unmarshal(raw, &obj); err != nil {
		return nil, invalid("not a JSON object: %v", err)
	}
	if obj == nil {
		return nil, invalid("not a JSON object")
	}

	_, hasChart := present(obj, "chartType")
	_, hasTable := present(obj, "tableData")
	switch {
	case hasChart && hasTable:
		return nil, invalid("both chartType and tableData present")
	case hasChart:
		c, err := decodeChart(obj)
		if err != nil {
			return nil, err
		}
		return &Spec{Kind: KindChart, Chart: c}, nil
	case hasTable:
		t, err := decodeTable(obj["tableData"])
		if err != nil {
			return nil, err
		}
		return &Spec{Kind: KindTable, Table: t}, nil
	default:
		return nil, invalid("neither chartType nor tableData present")
	}
}

// unmarshal decodes with numbers kept as json.Number and rejects trailing data.
func unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// More misses a stray closing bracket, so the next token must be EOF.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// present returns the field when it exists and is not null.
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

func optionalString(obj map[string]json.RawMessage, key string) (string, error) {
	v, ok := present(obj, key)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", invalid("%s must be a string", key)
	}
	return s, nil
}

func decodeChart(obj map[string]json.RawMessage) (*Chart, error) {
	typ, err := optionalString(obj, "chartType")
	if err != nil {
		return nil, err
	}
	c := &Chart{Type: ChartType(typ)}
	if !c.Type.Valid() {
		return nil, invalid("unknown chartType %q", typ)
	}
	if c.Title, err = optionalString(obj, "title"); err != nil {
		return nil, err
	}
	if c.XAxis, err = optionalString(obj, "xAxis"); err != nil {
		return nil, err
	}
	if c.YAxis, err = optionalString(obj, "yAxis"); err != nil {
		return nil, err
	}

	data, ok := present(obj, "chartData")
	if !ok {
		return nil, invalid("chartData is required")
	}
	var rows []map[string]any
	if err := unmarshal(data, &rows); err != nil {
		return nil, invalid("chartData must be an array of objects")
	}
	if len(rows) == 0 {
		return nil, invalid("chartData must not be empty")
	}
	c.Data = make([]Row, len(rows))
	for i, r := range rows {
		if r == nil {
			return nil, invalid("chartData[%d] must be an object", i)
		}
		for k, v := range r {
			if !isScalar(v) {
				return nil, invalid("chartData[%d].%s must be a scalar", i, k)
			}
		}
		c.Data[i] = Row(r)
	}

	if s, ok := present(obj, "series"); ok {
		var series []string
		if err := json.Unmarshal(s, &series); err != nil {
			return nil, invalid("series must be an array of strings")
		}
		// An empty list draws nothing; fall back to the single yAxis channel.
		if len(series) > 0 {
			c.Series = series
		}
	}
	return c, nil
}

func decodeTable(raw json.RawMessage) (*Table, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, invalid("tableData must be an object")
	}
	h, ok := present(obj, "headers")
	if !ok {
		return nil, invalid("tableData.headers is required")
	}
	t := &Table{}
	if err := json.Unmarshal(h, &t.Headers); err != nil {
		return nil, invalid("tableData.headers must be an array of strings")
	}
	if len(t.Headers) == 0 {
		return nil, invalid("tableData.headers must not be empty")
	}

	t.Rows = [][]any{}
	if r, ok := present(obj, "rows"); ok {
		var rows [][]any
		if err := unmarshal(r, &rows); err != nil {
			return nil, invalid("tableData.rows must be an array of arrays")
		}
		for i, row := range rows {
			if len(row) != len(t.Headers) {
				return nil, invalid("tableData.rows[%d] has %d cells, want %d", i, len(row), len(t.Headers))
			}
			for j, cell := range row {
				if !isScalar(cell) {
					return nil, invalid("tableData.rows[%d][%d] must be a scalar", i, j)
				}
			}
		}
		t.Rows = rows
	}
	return t, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number:
		return true
	}
	return false
}
