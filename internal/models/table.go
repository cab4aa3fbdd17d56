package models

// Table is a header row plus data rows of string cells.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"data"`
}

// EmptyTable returns a table with no headers and no rows.
func EmptyTable() *Table {
	return &Table{Headers: []string{}, Rows: [][]string{}}
}

// Records returns each row keyed by header name.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// CsvPreview is the response of a CSV preview request.
type CsvPreview struct {
	DataSource *DataSource `json:"dataSource"`
	Preview    *Table      `json:"preview"`
}
