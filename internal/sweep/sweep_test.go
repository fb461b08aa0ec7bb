package sweep_test

import (
	"context"
	"encoding/csv"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/dummy"
	"envbench/internal/output"
	"envbench/internal/session"
	"envbench/internal/stats"
	"envbench/internal/sweep"
	"envbench/internal/validate"
)

func testServer(t *testing.T, opts dummy.Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(dummy.NewHandler(opts))
	t.Cleanup(srv.Close)
	return srv
}

func TestGridOrderIsDeterministic(t *testing.T) {
	cfg := sweep.Config{
		Target:      "http://localhost:0",
		Modes:       []session.Mode{session.ModeHTTP, session.ModeWS},
		BatchSizes:  []int{1, 10},
		Waits:       []time.Duration{100 * time.Millisecond, time.Second},
		Repetitions: 2,
	}
	s := sweep.New(cfg, nil, nil)

	grid := s.Grid()
	require.Len(t, grid, 16)
	assert.Equal(t, 16, s.TotalTrials())

	// mode outer, wait, repetition, batch size innermost
	assert.Equal(t, session.ModeHTTP, grid[0].Mode)
	assert.Equal(t, session.ModeWS, grid[8].Mode)

	first := grid[:8]
	wantSizes := []int{1, 10, 1, 10, 1, 10, 1, 10}
	wantReps := []int{1, 1, 2, 2, 1, 1, 2, 2}
	for i, cell := range first {
		assert.Equal(t, wantSizes[i], cell.Size, "cell %d", i)
		assert.Equal(t, wantReps[i], cell.Repetition, "cell %d", i)
	}
	assert.Equal(t, 100*time.Millisecond, first[0].Wait)
	assert.Equal(t, time.Second, first[4].Wait)
}

func TestSweepProducesAllRecords(t *testing.T) {
	srv := testServer(t, dummy.Options{})
	dir := t.TempDir()

	writer, err := output.New(dir)
	require.NoError(t, err)

	cfg := sweep.Config{
		Target:      srv.URL,
		Modes:       []session.Mode{session.ModeWS},
		BatchSizes:  []int{1, 10},
		Waits:       []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
		Repetitions: 2,
		Timeout:     5 * time.Second,
	}
	s := sweep.New(cfg, writer, stats.NewLive())

	summaries, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	// 2 batch sizes x 2 waits x 2 reps = 8 trials
	require.Len(t, summaries, 8)

	// Session records: (1+10) per (wait, rep) cell = 44 total.
	raw, err := os.ReadFile(filepath.Join(dir, output.RawFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 44)

	f, err := os.Open(filepath.Join(dir, output.SummaryFileName))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 9, "header plus 8 summary rows")

	// Batch sizes alternate 1,10 in the documented order.
	for i, sum := range summaries {
		want := 1
		if i%2 == 1 {
			want = 10
		}
		assert.Equal(t, want, sum.BatchSize, "summary %d", i)
		assert.Equal(t, sum.BatchSize, sum.Successful+sum.Failed)
	}
}

func TestSweepAgainstHealthyServer(t *testing.T) {
	// Scenario: batch=10, wait=0.5s, streaming mode, fast local target.
	srv := testServer(t, dummy.Options{})

	cfg := sweep.Config{
		Target:      srv.URL,
		Modes:       []session.Mode{session.ModeWS},
		BatchSizes:  []int{10},
		Waits:       []time.Duration{500 * time.Millisecond},
		Repetitions: 1,
		Timeout:     10 * time.Second,
	}
	s := sweep.New(cfg, nil, stats.NewLive())

	summaries, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	sum := summaries[0]
	assert.Equal(t, 10, sum.Successful)
	assert.Equal(t, 0, sum.Failed)
	assert.Zero(t, sum.ErrorRate)

	require.NotNil(t, sum.Total)
	assert.GreaterOrEqual(t, sum.Total.P99, 0.5)
	assert.Less(t, sum.Total.P99, 1.0)
	assert.Equal(t, 1, sum.UniqueHosts)
	assert.Equal(t, 10, sum.UniqueSessions, "each streaming session gets its own environment")
}

func TestSweepAllConnectionsRefused(t *testing.T) {
	// Scenario: the target refuses everything; the sweep still
	// produces a full summary and does not abort.
	srv := httptest.NewServer(nil)
	target := srv.URL
	srv.Close()

	cfg := sweep.Config{
		Target:      target,
		Modes:       []session.Mode{session.ModeHTTP},
		BatchSizes:  []int{100},
		Waits:       []time.Duration{10 * time.Millisecond},
		Repetitions: 1,
		Timeout:     2 * time.Second,
	}
	s := sweep.New(cfg, nil, stats.NewLive())

	summaries, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	sum := summaries[0]
	assert.Equal(t, 0, sum.Successful)
	assert.Equal(t, 100, sum.Failed)
	assert.InDelta(t, 1.0, sum.ErrorRate, 1e-9)
	assert.Nil(t, sum.Total)
	assert.Nil(t, sum.Step)
}

func TestPreflightFatalAbortsBeforeTrials(t *testing.T) {
	srv := testServer(t, dummy.Options{Hosts: []string{"only-host"}})

	cfg := sweep.Config{
		Target:      srv.URL,
		Modes:       []session.Mode{session.ModeWS},
		BatchSizes:  []int{10},
		Waits:       []time.Duration{time.Second},
		Repetitions: 1,
		Timeout:     5 * time.Second,
		Check:       validate.Check{MinHosts: 2, Fatal: true},
	}
	s := sweep.New(cfg, nil, stats.NewLive())

	err := s.Preflight(context.Background())
	require.Error(t, err)

	var distErr *sweep.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, 2, distErr.Expected)
	assert.Equal(t, 1, distErr.Distinct)
	assert.Equal(t, 0, s.Completed())
}

func TestPreflightPassesWithRoundRobinHosts(t *testing.T) {
	srv := testServer(t, dummy.Options{Hosts: []string{"host-a", "host-b"}})

	cfg := sweep.Config{
		Target:      srv.URL,
		Modes:       []session.Mode{session.ModeWS},
		BatchSizes:  []int{1},
		Waits:       []time.Duration{0},
		Repetitions: 1,
		Timeout:     5 * time.Second,
		Check:       validate.Check{MinHosts: 2, Fatal: true},
	}
	s := sweep.New(cfg, nil, stats.NewLive())

	require.NoError(t, s.Preflight(context.Background()))
}

func TestSweepOnTrialCallback(t *testing.T) {
	srv := testServer(t, dummy.Options{})

	cfg := sweep.Config{
		Target:      srv.URL,
		Modes:       []session.Mode{session.ModeHTTP},
		BatchSizes:  []int{2, 4},
		Waits:       []time.Duration{0},
		Repetitions: 1,
		Timeout:     5 * time.Second,
	}
	s := sweep.New(cfg, nil, stats.NewLive())

	var seen []int
	s.OnTrial = func(sum stats.Summary) {
		seen = append(seen, sum.BatchSize)
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, seen)
}
