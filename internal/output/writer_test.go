package output_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/output"
	"envbench/internal/session"
	"envbench/internal/stats"
)

func TestWriterAppendsJSONLRecords(t *testing.T) {
	dir := t.TempDir()
	w, err := output.New(dir)
	require.NoError(t, err)

	results := []session.Result{
		{RequestID: 0, Mode: session.ModeWS, Success: true, TotalLatency: 0.5, SessionHash: "abc"},
		{RequestID: 1, Mode: session.ModeWS, Success: false, ErrorType: session.ErrTimeout, ErrorMessage: "deadline"},
	}
	w.WriteResults(results)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, output.RawFileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first session.Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 0, first.RequestID)
	assert.True(t, first.Success)

	var second session.Result
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, session.ErrTimeout, second.ErrorType)
}

func TestWriterCSVHeaderOnce(t *testing.T) {
	dir := t.TempDir()

	write := func(s stats.Summary) {
		w, err := output.New(dir)
		require.NoError(t, err)
		w.WriteSummary(s)
		require.NoError(t, w.Close())
	}

	// Two separate writer lifetimes appending into the same directory.
	write(stats.Summary{Mode: session.ModeWS, BatchSize: 10, Successful: 10})
	write(stats.Summary{Mode: session.ModeWS, BatchSize: 20, Successful: 20})

	f, err := os.Open(filepath.Join(dir, output.SummaryFileName))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "one header plus two data rows")
	assert.Equal(t, "mode", rows[0][0])
	assert.Equal(t, "ws", rows[1][0])

	// Fixed schema: every row has as many cells as the header.
	for i, row := range rows {
		assert.Len(t, row, len(rows[0]), "row %d", i)
	}
}

func TestWriterZeroSuccessSummaryWritesNA(t *testing.T) {
	dir := t.TempDir()
	w, err := output.New(dir)
	require.NoError(t, err)

	w.WriteSummary(stats.Summary{
		Mode:      session.ModeHTTP,
		BatchSize: 100,
		Failed:    100,
		ErrorRate: 1.0,
	})
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, output.SummaryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "NA")
	assert.NotContains(t, strings.Split(string(data), "\n")[1], "0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000")
}

func TestWriterUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permissions are not enforced")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	defer os.Chmod(dir, 0755)

	_, err := output.New(filepath.Join(dir, "out"))
	assert.Error(t, err)
}
