package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"catcluster/internal/core"
	"catcluster/internal/embedding"
	"catcluster/internal/sweep"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("9"))
	skipStyle   = cellStyle.Foreground(lipgloss.Color("8"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// SweepTable renders sweep records for the terminal.
func SweepTable(records []sweep.Record, mode sweep.Mode) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle)

	if mode == sweep.ModeQuality {
		t.Headers("dataset", "k", "alg", "distance", "runtime (s)", "silhouette", "mae", "rand", "sizes")
		for _, r := range records {
			t.Row(r.Dataset, fmt.Sprint(r.K), string(r.Algorithm), string(r.Distance), runtimeCell(r),
				indexCell(r, core.MetricSilhouette), indexCell(r, core.MetricMeanIntraClusterDistance),
				indexCell(r, core.MetricAdjustedRand), sizesCell(r))
		}
	} else {
		t.Headers("data size", "k", "alg", "distance", "points", "runtime (s)")
		for _, r := range records {
			t.Row(fmt.Sprint(r.DataSize), fmt.Sprint(r.K), string(r.Algorithm), string(r.Distance),
				fmt.Sprint(r.Points), runtimeCell(r))
		}
	}

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if row >= 0 && row < len(records) {
			switch {
			case records[row].Failed():
				return failStyle
			case records[row].Skipped != "":
				return skipStyle
			}
		}
		return cellStyle
	})
	return t.Render()
}

// PivotTable renders the pivot ensemble, one row per top-level category.
func PivotTable(pivots []embedding.Pivot) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "pivot", "nodes", "depth")
	for i, p := range pivots {
		t.Row(fmt.Sprint(i), p.Label, fmt.Sprint(p.Tree.NodeCount()), fmt.Sprint(p.Tree.Depth()))
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}
