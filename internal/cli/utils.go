// Package cli formats command output for the chatdata CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/hyperjump/chatdata/internal/chart"
	"github.com/hyperjump/chatdata/internal/chat"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/vizspec"
	"github.com/hyperjump/chatdata/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// maxCellWidth bounds table cells in text output.
const maxCellWidth = 40

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.Faint)
	warnColor    = color.New(color.FgYellow)
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteDataSources writes the data source list.
func WriteDataSources(w io.Writer, list []*models.DataSource, format OutputFormat) error {
	if format == OutputJSON {
		if list == nil {
			list = []*models.DataSource{}
		}
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No data sources.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headingColor.Fprintln(tw, "ID\tNAME\tTYPE\tUPDATED")
	for _, ds := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ds.ID, utils.Truncate(ds.Name, maxCellWidth), ds.Type, ds.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// WritePreview writes a CSV preview.
func WritePreview(w io.Writer, p *models.CsvPreview, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, p)
	}
	headingColor.Fprintf(w, "%s (%s)\n", p.DataSource.Name, p.DataSource.ID)
	return WriteTable(w, p.Preview)
}

// WriteTable writes t as aligned columns.
func WriteTable(w io.Writer, t *models.Table) error {
	if t == nil || len(t.Headers) == 0 {
		dimColor.Fprintln(w, "(empty)")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cells(t.Headers), "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(cells(row), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	dimColor.Fprintf(w, "%d row(s)\n", len(t.Rows))
	return nil
}

func cells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		c = strings.ReplaceAll(c, "\t", " ")
		c = strings.ReplaceAll(c, "\n", " ")
		out[i] = utils.Truncate(c, maxCellWidth)
	}
	return out
}

// WriteAnswer writes a chat answer: the prose followed by the visualization
// as a table.
func WriteAnswer(w io.Writer, resp *chat.Response, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Prose)
	return writeVisualization(w, resp.Visualization, resp.EligibleKinds)
}

// WriteExtraction writes the result of splitting a response into prose and a visualization.
func WriteExtraction(w io.Writer, res vizspec.Result, format OutputFormat) error {
	if format == OutputJSON {
		out := map[string]any{"prose": res.Prose, "visualization": res.Spec}
		if res.Invalid != nil {
			out["invalid"] = res.Invalid.Error()
		}
		if kinds := chart.EligibleKinds(res.Spec); kinds != nil {
			out["eligibleKinds"] = kinds
		}
		return writeJSON(w, out)
	}
	fmt.Fprintln(w, res.Prose)
	if res.Invalid != nil {
		warnColor.Fprintf(w, "\nignored visualization block: %v\n", res.Invalid)
	}
	return writeVisualization(w, res.Spec, chart.EligibleKinds(res.Spec))
}

func writeVisualization(w io.Writer, spec *vizspec.Spec, kinds []vizspec.ChartType) error {
	if spec == nil {
		return nil
	}
	fmt.Fprintln(w)
	if spec.Kind == vizspec.KindChart && spec.Chart != nil {
		title := spec.Chart.Title
		if title == "" {
			title = "Chart"
		}
		headingColor.Fprintf(w, "%s [%s]\n", title, spec.Chart.Type)
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		dimColor.Fprintf(w, "can be shown as: %s\n", strings.Join(names, ", "))
	} else {
		headingColor.Fprintln(w, "Table")
	}
	t, err := chart.FromVisualization(spec)
	if err != nil {
		return err
	}
	return WriteTable(w, t)
}
