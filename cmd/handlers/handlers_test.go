package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcluster/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeCorpus lays out a two-root corpus and a config file pointing at it.
func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	categories := writeFile(t, dir, "categories.csv", "A\nB,A\nC,A\nX\nY,X\n")
	businesses := writeFile(t, dir, "business.json", `{"biz1":["B"],"biz2":["C"],"biz3":["Y"]}`)
	users := writeFile(t, dir, "users.json", `{"u1":["biz1"],"u2":["biz1"],"u3":["biz3"],"u4":["biz3","biz2"]}`)
	uids := writeFile(t, dir, "validuid", "u1\nu2\nu3\nu4\n")

	cfg := strings.Join([]string{
		"data:",
		"  category_file: " + categories,
		"  business_file: " + businesses,
		"  user_file: " + users,
		"  valid_uid_file: " + uids,
		"embedding:",
		"  sigma: 1.0",
		"covertree:",
		"  vec_top_level: 2",
		"",
	}, "\n")
	return writeFile(t, dir, "catcluster.yaml", cfg)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr, logs bytes.Buffer
	cmd := newRootCmd(&app{logOut: &logs})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), logs.String(), err
}

func TestRunJSON(t *testing.T) {
	cfgFile := writeCorpus(t)

	stdout, logs, err := execute(t, "--config", cfgFile, "run", "--alg", "hierarchical", "--dist", "vec", "--k", "2", "--json", "--metrics", "sc")
	require.NoError(t, err)

	var out runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, core.AlgHierarchical, out.Algorithm)
	assert.Equal(t, 2, out.K)
	require.Len(t, out.Assignments, 4)
	assert.Equal(t, out.Assignments["u1"], out.Assignments["u2"], "identical users share a cluster")
	assert.Contains(t, out.Metrics, core.MetricSilhouette)
	assert.Contains(t, logs, "run finished")
}

func TestRunRejectsBeforeLoading(t *testing.T) {
	dir := t.TempDir()
	// data files do not exist; rejection must come first
	cfgFile := writeFile(t, dir, "catcluster.yaml", "data:\n  category_file: "+filepath.Join(dir, "missing.csv")+"\n")

	_, _, err := execute(t, "--config", cfgFile, "run", "--alg", "kmeans", "--dist", "edit", "--k", "3")
	assert.ErrorIs(t, err, core.ErrCompatibility)

	_, _, err = execute(t, "--config", cfgFile, "run", "--alg", "hierarchical", "--dist", "vec")
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, _, err = execute(t, "--config", cfgFile, "run", "--alg", "hierarichical", "--k", "3")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRunRejectsUnknownMetric(t *testing.T) {
	cfgFile := writeCorpus(t)
	_, _, err := execute(t, "--config", cfgFile, "run", "--alg", "hierarchical", "--k", "2", "--metrics", "purity")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestQualityJSON(t *testing.T) {
	cfgFile := writeCorpus(t)

	stdout, logs, err := execute(t, "--config", cfgFile, "quality", "--k-min", "2", "--k-max", "2", "--alg", "hierarchical", "--dist", "vec", "--json")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "default", records[0]["dataset"])
	assert.Equal(t, "hierarchical", records[0]["alg"])
	assert.NotContains(t, records[0], "error")
	assert.Contains(t, logs, "starting quality sweep")
}

func TestQualityRejectsBadRange(t *testing.T) {
	cfgFile := writeCorpus(t)
	_, _, err := execute(t, "--config", cfgFile, "quality", "--k-min", "5", "--k-max", "3")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestQualityReport(t *testing.T) {
	cfgFile := writeCorpus(t)
	reportDir := t.TempDir()

	_, _, err := execute(t, "--config", cfgFile, "quality", "--k-min", "2", "--k-max", "2", "--alg", "covertree", "--dist", "vec", "--report-dir", reportDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_quality_report.md"))
}

func TestEfficiencyJSON(t *testing.T) {
	cfgFile := writeCorpus(t)

	stdout, _, err := execute(t, "--config", cfgFile, "efficiency", "--alg", "hierarchical", "--dist", "vec", "--k", "2", "--sizes", "2,4", "--json")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 2)
	assert.EqualValues(t, 2, records[0]["points"])
	assert.EqualValues(t, 4, records[1]["points"])
}

func TestPivots(t *testing.T) {
	cfgFile := writeCorpus(t)

	stdout, _, err := execute(t, "--config", cfgFile, "pivots")
	require.NoError(t, err)
	assert.Contains(t, stdout, "A")
	assert.Contains(t, stdout, "X")
	assert.Contains(t, stdout, "2 dimensions")
}

func TestInvalidLogLevel(t *testing.T) {
	cfgFile := writeCorpus(t)
	_, _, err := execute(t, "--config", cfgFile, "--log-level", "loud", "pivots")
	assert.Error(t, err)
}
