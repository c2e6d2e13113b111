package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"catcluster/internal/core"
	"catcluster/internal/sweep"
)

// RenderMarkdownReport writes a markdown report of the sweep records to
// outputDir and returns its path. The file is named after the date and mode,
// e.g. 2026-10-14_quality_report.md.
func RenderMarkdownReport(records []sweep.Record, mode sweep.Mode, outputDir string) (string, error) {
	dateStr := time.Now().UTC().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s_report.md", dateStr, mode)

	var content strings.Builder
	content.WriteString(fmt.Sprintf("# %s sweep - %s\n\n", strings.ToUpper(string(mode[:1]))+string(mode[1:]), dateStr))

	if len(records) == 0 {
		content.WriteString("No experiments were run.\n")
		return WriteReportToFile(content.String(), outputDir, filename)
	}

	if mode == sweep.ModeQuality {
		content.WriteString("| dataset | k | alg | distance | runtime (s) | silhouette | mae | rand | sizes |\n")
		content.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	} else {
		content.WriteString("| data size | k | alg | distance | points | runtime (s) |\n")
		content.WriteString("|---|---|---|---|---|---|\n")
	}

	var failures []sweep.Record
	for _, r := range records {
		if r.Failed() {
			failures = append(failures, r)
		}
		if mode == sweep.ModeQuality {
			content.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %s | %s |\n",
				r.Dataset, r.K, r.Algorithm, r.Distance, runtimeCell(r),
				indexCell(r, core.MetricSilhouette), indexCell(r, core.MetricMeanIntraClusterDistance),
				indexCell(r, core.MetricAdjustedRand), sizesCell(r)))
		} else {
			content.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %d | %s |\n",
				r.DataSize, r.K, r.Algorithm, r.Distance, r.Points, runtimeCell(r)))
		}
	}

	if len(failures) > 0 {
		content.WriteString("\n## Failures\n\n")
		for _, r := range failures {
			content.WriteString(fmt.Sprintf("- `%s` %s/%s k=%d: %s\n", r.RunID, r.Algorithm, r.Distance, r.K, r.Err))
		}
	}

	return WriteReportToFile(content.String(), outputDir, filename)
}

// WriteReportToFile writes the provided content to a file in the specified directory
func WriteReportToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "reports" // Default output directory
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write report file %s: %w", filePath, err)
	}

	return filePath, nil
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, records []sweep.Record) error {
	if records == nil {
		records = []sweep.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func runtimeCell(r sweep.Record) string {
	switch {
	case r.Skipped != "":
		return "skipped"
	case r.Failed():
		return "failed"
	default:
		return fmt.Sprintf("%.3f", r.Runtime.Seconds())
	}
}

func indexCell(r sweep.Record, metric core.Metric) string {
	if r.Metrics == nil {
		return "-"
	}
	v := r.Metrics.Value(metric)
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.4f", *v)
}

func sizesCell(r sweep.Record) string {
	if r.Metrics == nil {
		return "-"
	}
	parts := make([]string, len(r.Metrics.Sizes))
	for i, s := range r.Metrics.Sizes {
		parts[i] = fmt.Sprintf("%d", s.Size)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
