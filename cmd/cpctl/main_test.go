package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gocp/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with a quiet logger and a private snapshot dir.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CP_LOG_LEVEL", "ERROR")
	t.Setenv("CP_SNAPSHOT_DIR", t.TempDir())
	t.Setenv("CP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
}

func TestExperimentCommandsReport(t *testing.T) {
	for _, name := range []string{"icc", "tcc", "mpc", "icr"} {
		t.Run(name, func(t *testing.T) {
			quietEnv(t)
			out, err := run(t, name, "--per-class", "20", "--seed", "3")
			require.NoError(t, err)
			assert.Contains(t, out, "mean")
		})
	}
}

func TestICCJSONReport(t *testing.T) {
	quietEnv(t)
	out, err := run(t, "icc", "--per-class", "30", "--format", "json", "--significance", "0.1")
	require.NoError(t, err)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.NotEmpty(t, r.Results)
	assert.Equal(t, "Accuracy(0.10)", r.Results[0].Name)
	assert.Equal(t, 90, r.Results[0].Count)
	assert.Greater(t, r.Results[0].Mean, 0.7)
}

func TestHTMLReport(t *testing.T) {
	quietEnv(t)
	out, err := run(t, "icr", "--per-class", "20", "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "Coverage")
}

func TestSaveThenList(t *testing.T) {
	quietEnv(t)

	out, err := run(t, "icr", "--per-class", "20", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved snapshot")

	out, err = run(t, "snapshots")
	require.NoError(t, err)
	assert.Contains(t, out, "inductive_regressor")
}

func TestICCOnCSVFile(t *testing.T) {
	quietEnv(t)
	var b strings.Builder
	b.WriteString("a,b,class\n")
	for i := 0; i < 60; i++ {
		label := "left"
		x := -3.0
		if i%2 == 0 {
			label, x = "right", 3.0
		}
		b.WriteString(strings.Join([]string{
			ftoa(x + float64(i%5)*0.1), ftoa(float64(i%7) * 0.2), label,
		}, ",") + "\n")
	}
	path := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	out, err := run(t, "icc", "--data", path, "--target", "class", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "**classes**: [left right]")
	assert.Contains(t, out, "| Accuracy(0.10) |")
}

func TestRejectsBadInput(t *testing.T) {
	quietEnv(t)
	_, err := run(t, "icc", "--significance", "1.5")
	assert.Error(t, err)

	_, err = run(t, "icc", "--format", "pdf")
	assert.Error(t, err)

	_, err = run(t, "icc", "--data", filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
