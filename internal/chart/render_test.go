package chart

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/chatdata/internal/vizspec"
)

func chartSpec(t *testing.T, raw string) *vizspec.Spec {
	t.Helper()
	spec, err := vizspec.Decode([]byte(raw))
	require.NoError(t, err)
	return spec
}

func rowsSpec(t *testing.T, n int) *vizspec.Spec {
	t.Helper()
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{"name": fmt.Sprintf("r%d", i), "value": i}
	}
	data, err := json.Marshal(map[string]any{"chartType": "pie", "chartData": rows})
	require.NoError(t, err)
	return chartSpec(t, string(data))
}

func TestEligibleKinds(t *testing.T) {
	all := []vizspec.ChartType{vizspec.ChartBar, vizspec.ChartLine, vizspec.ChartArea, vizspec.ChartPie}
	noPie := []vizspec.ChartType{vizspec.ChartBar, vizspec.ChartLine, vizspec.ChartArea}

	assert.Equal(t, all, EligibleKinds(rowsSpec(t, 1)))
	assert.Equal(t, all, EligibleKinds(rowsSpec(t, 10)))
	assert.Equal(t, noPie, EligibleKinds(rowsSpec(t, 11)))

	table := chartSpec(t, `{"tableData":{"headers":["a"],"rows":[]}}`)
	assert.Nil(t, EligibleKinds(table))
	assert.Nil(t, EligibleKinds(nil))
}

func TestRender_SingleChannelDefaults(t *testing.T) {
	spec := chartSpec(t, `{"chartType":"bar","chartData":[{"name":"Q1","value":10},{"name":"Q2","value":"12.5"},{"name":"Q3"}]}`)
	c, err := Render(spec, vizspec.ChartBar)
	require.NoError(t, err)

	assert.Equal(t, "name", c.XAxis)
	assert.Equal(t, "value", c.YAxis)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, c.Categories)
	require.Len(t, c.Channels, 1)
	ch := c.Channels[0]
	assert.Equal(t, "value", ch.Key)
	assert.Equal(t, SingleSeriesColor, ch.Color)
	require.Len(t, ch.Values, 3)
	assert.Equal(t, 10.0, *ch.Values[0])
	assert.Equal(t, 12.5, *ch.Values[1])
	assert.Nil(t, ch.Values[2])
	assert.Empty(t, c.Slices)

	assert.Empty(t, spec.Chart.XAxis, "rendering must not fill defaults into the spec")
}

func TestRender_SeriesUsePaletteByPosition(t *testing.T) {
	series := `["a","b","c","d","e","f","g"]`
	spec := chartSpec(t, `{"chartType":"line","xAxis":"month","series":`+series+`,"chartData":[{"month":"Jan","a":1,"g":7}]}`)
	c, err := Render(spec, vizspec.ChartLine)
	require.NoError(t, err)
	require.Len(t, c.Channels, 7)
	for i, ch := range c.Channels {
		assert.Equal(t, Palette[i%len(Palette)], ch.Color, "channel %d", i)
	}
	assert.Equal(t, "#0088FE", c.Channels[6].Color, "seventh series wraps to the first color")
	assert.Equal(t, []string{"Jan"}, c.Categories)
	assert.Equal(t, 7.0, *c.Channels[6].Values[0])
	assert.Nil(t, c.Channels[1].Values[0])
}

func TestRender_Pie(t *testing.T) {
	spec := chartSpec(t, `{"chartType":"pie","xAxis":"category","yAxis":"sales","series":["ignored"],
		"chartData":[{"category":"Watches","sales":10000},{"category":"Sunglasses","sales":8000},{"category":"Trackers","sales":"n/a"}]}`)
	c, err := Render(spec, vizspec.ChartPie)
	require.NoError(t, err)
	assert.Empty(t, c.Channels)
	require.Len(t, c.Slices, 3)
	assert.Equal(t, Slice{Label: "Watches", Value: 10000, Color: "#0088FE"}, c.Slices[0])
	assert.Equal(t, Slice{Label: "Sunglasses", Value: 8000, Color: "#00C49F"}, c.Slices[1])
	assert.Equal(t, Slice{Label: "Trackers", Value: 0, Color: "#FFBB28"}, c.Slices[2])
}

func TestRender_PieSlicesWrapPalette(t *testing.T) {
	c, err := Render(rowsSpec(t, 8), vizspec.ChartPie)
	require.NoError(t, err)
	assert.Equal(t, Palette[0], c.Slices[6].Color)
	assert.Equal(t, Palette[1], c.Slices[7].Color)
	assert.Equal(t, "r7", c.Slices[7].Label)
	assert.Equal(t, 7.0, c.Slices[7].Value)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(rowsSpec(t, 11), vizspec.ChartPie)
	assert.ErrorIs(t, err, ErrIneligibleKind)

	_, err = Render(rowsSpec(t, 2), vizspec.ChartType("scatter"))
	assert.ErrorIs(t, err, ErrIneligibleKind)

	table := chartSpec(t, `{"tableData":{"headers":["a"],"rows":[["x"]]}}`)
	_, err = Render(table, vizspec.ChartBar)
	assert.ErrorIs(t, err, ErrNotChart)
}

func TestRenderTable_Echo(t *testing.T) {
	spec := chartSpec(t, `{"tableData":{"headers":["Product","Units"],"rows":[["Widget",3],["Gadget",null]]}}`)
	tbl, err := RenderTable(spec)
	require.NoError(t, err)
	assert.Same(t, spec.Table, tbl)

	_, err = RenderTable(rowsSpec(t, 1))
	assert.ErrorIs(t, err, ErrNotTable)
}

func TestView(t *testing.T) {
	spec := chartSpec(t, `{"chartType":"line","chartData":[{"name":"a","value":1}]}`)
	v, err := NewView(spec)
	require.NoError(t, err)
	assert.Equal(t, vizspec.ChartLine, v.Kind())

	require.NoError(t, v.Select(vizspec.ChartPie))
	c, err := v.Render()
	require.NoError(t, err)
	assert.Len(t, c.Slices, 1)
	assert.Equal(t, vizspec.ChartLine, spec.Chart.Type, "switching kind must not mutate the spec")

	assert.ErrorIs(t, v.Select("radar"), ErrIneligibleKind)
	assert.Equal(t, vizspec.ChartPie, v.Kind())
}

func TestView_LargePieStartsOnBar(t *testing.T) {
	v, err := NewView(rowsSpec(t, 11))
	require.NoError(t, err)
	assert.Equal(t, vizspec.ChartBar, v.Kind())
	assert.ErrorIs(t, v.Select(vizspec.ChartPie), ErrIneligibleKind)
	assert.NotContains(t, v.Eligible(), vizspec.ChartPie)
}

func TestNumberAndLabel(t *testing.T) {
	n, ok := Number(json.Number("3.25"))
	assert.True(t, ok)
	assert.Equal(t, 3.25, n)
	n, ok = Number(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, 42.0, n)
	_, ok = Number(true)
	assert.False(t, ok)
	_, ok = Number(nil)
	assert.False(t, ok)

	assert.Equal(t, "", Label(nil))
	assert.Equal(t, "true", Label(true))
	assert.Equal(t, "1e3", Label(json.Number("1e3")))
	assert.Equal(t, "Q1", Label("Q1"))
}
