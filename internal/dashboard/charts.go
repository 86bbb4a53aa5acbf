package dashboard

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/semlayer/semlayer/internal/db"
)

var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// ChartConfig is the client-side chart description. Labels run along the
// x axis (or the slices of a pie); each series carries one value per label.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Labels     []string      `json:"labels"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
}

type ChartSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// BuildChart charts valueCols of res against labelCol.
func BuildChart(chartType, title string, res *db.Result, labelCol string, valueCols ...string) (*ChartConfig, error) {
	li := res.Column(labelCol)
	if li < 0 {
		return nil, fmt.Errorf("column %q not in result", labelCol)
	}
	cfg := &ChartConfig{
		ChartType:  chartType,
		Title:      title,
		XAxis:      labelCol,
		Labels:     make([]string, 0, len(res.Rows)),
		ShowLegend: len(valueCols) > 1 || isRound(chartType),
	}
	if len(valueCols) == 1 {
		cfg.YAxis = valueCols[0]
	}

	idx := make([]int, len(valueCols))
	for i, col := range valueCols {
		if idx[i] = res.Column(col); idx[i] < 0 {
			return nil, fmt.Errorf("column %q not in result", col)
		}
		cfg.Series = append(cfg.Series, ChartSeries{Name: col, Data: make([]float64, 0, len(res.Rows))})
	}

	for _, row := range res.Rows {
		cfg.Labels = append(cfg.Labels, labelOf(row[li]))
		for i, vi := range idx {
			cfg.Series[i].Data = append(cfg.Series[i].Data, toFloat(row[vi]))
		}
	}
	cfg.Colors = assignColors(cfg)
	return cfg, nil
}

// PivotChart spreads seriesCol into one series per distinct value, with
// xCol as labels. Missing combinations chart as zero.
func PivotChart(chartType, title string, res *db.Result, xCol, seriesCol, valueCol string) (*ChartConfig, error) {
	xi, si, vi := res.Column(xCol), res.Column(seriesCol), res.Column(valueCol)
	if xi < 0 || si < 0 || vi < 0 {
		return nil, fmt.Errorf("columns %q, %q, %q not all in result", xCol, seriesCol, valueCol)
	}

	var labels, names []string
	labelPos := map[string]int{}
	values := map[string]map[string]float64{}
	for _, row := range res.Rows {
		x, s := labelOf(row[xi]), labelOf(row[si])
		if _, ok := labelPos[x]; !ok {
			labelPos[x] = len(labels)
			labels = append(labels, x)
		}
		if _, ok := values[s]; !ok {
			values[s] = map[string]float64{}
			names = append(names, s)
		}
		values[s][x] += toFloat(row[vi])
	}
	sort.Strings(names)

	cfg := &ChartConfig{
		ChartType:  chartType,
		Title:      title,
		XAxis:      xCol,
		YAxis:      valueCol,
		Labels:     labels,
		ShowLegend: true,
	}
	for _, name := range names {
		data := make([]float64, len(labels))
		for x, v := range values[name] {
			data[labelPos[x]] = v
		}
		cfg.Series = append(cfg.Series, ChartSeries{Name: name, Data: data})
	}
	cfg.Colors = assignColors(cfg)
	return cfg, nil
}

// CountBy tallies the rows of res per value of col, most frequent first.
func CountBy(res *db.Result, col string) *db.Result {
	out := &db.Result{Columns: []string{col, "count"}}
	ci := res.Column(col)
	if ci < 0 {
		return out
	}
	counts := map[string]int64{}
	var order []string
	for _, row := range res.Rows {
		k := labelOf(row[ci])
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	for _, k := range order {
		out.Rows = append(out.Rows, []any{k, counts[k]})
	}
	return out
}

// Pie and doughnut charts colour slices, the rest colour series.
func assignColors(cfg *ChartConfig) []string {
	n := len(cfg.Series)
	if isRound(cfg.ChartType) {
		n = len(cfg.Labels)
	}
	colors := make([]string, n)
	for i := range colors {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}

func isRound(chartType string) bool {
	return chartType == "pie" || chartType == "doughnut"
}

func labelOf(v any) string {
	if v == nil {
		return "(none)"
	}
	return db.FormatValue(v)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
