package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/vizspec"
)

func awkwardTable() *models.Table {
	return &models.Table{
		Headers: []string{"name", "note, with comma", "qty"},
		Rows: [][]string{
			{"Smith, J", `said "hi"`, "3"},
			{"multi\nline", "", "-1.5"},
			{" padded ", "plain", ""},
		},
	}
}

func TestCSV_RoundTripIsLossless(t *testing.T) {
	in := awkwardTable()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	assert.Contains(t, buf.String(), `"Smith, J","said ""hi""",3`)

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSV_SingleColumnEmptyCellSurvives(t *testing.T) {
	in := &models.Table{Headers: []string{"a"}, Rows: [][]string{{"x"}, {""}, {"y"}}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.Equal(t, "a\nx\n\"\"\ny\n", buf.String())

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSV_LineBreaksWrittenAsLF(t *testing.T) {
	in := &models.Table{Headers: []string{"note", "n"}, Rows: [][]string{{"x\r\ny", "z"}, {"old\rmac", "1"}}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.NotContains(t, buf.String(), "\r")

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x\ny", "z"}, {"old\nmac", "1"}}, out.Rows)

	var again bytes.Buffer
	require.NoError(t, WriteCSV(&again, out))
	roundTrip, err := ReadCSV(&again)
	require.NoError(t, err)
	assert.Equal(t, out, roundTrip)
}

func TestCSV_HeaderOnly(t *testing.T) {
	in := &models.Table{Headers: []string{"a", "b"}, Rows: [][]string{}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.Equal(t, "a,b\n", buf.String())

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestXLSX_RoundTrip(t *testing.T) {
	in := awkwardTable()
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, in, "Results"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")), "xlsx is a zip archive")

	out, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.Headers, out.Headers)
	assert.Equal(t, in.Rows, out.Rows)
}

func TestFromSpec(t *testing.T) {
	spec, err := vizspec.Decode([]byte(`{"tableData":{"headers":["Product","Units","Active"],"rows":[["Widget",3,true],["Gadget",null,false]]}}`))
	require.NoError(t, err)
	tbl := FromSpec(spec.Table)
	assert.Equal(t, []string{"Product", "Units", "Active"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Widget", "3", "true"}, {"Gadget", "", "false"}}, tbl.Rows)
}

func TestFromChart(t *testing.T) {
	spec, err := vizspec.Decode([]byte(`{"chartType":"line","xAxis":"month","series":["a","b"],"chartData":[{"month":"Jan","a":1,"b":2},{"month":"Feb","a":3}]}`))
	require.NoError(t, err)
	tbl, err := FromVisualization(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "a", "b"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Jan", "1", "2"}, {"Feb", "3", ""}}, tbl.Rows)

	spec, err = vizspec.Decode([]byte(`{"chartType":"bar","chartData":[{"name":"Q1","value":5}]}`))
	require.NoError(t, err)
	tbl = FromChart(spec.Chart)
	assert.Equal(t, []string{"name", "value"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Q1", "5"}}, tbl.Rows)

	_, err = FromVisualization(nil)
	assert.ErrorIs(t, err, ErrNotTable)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
