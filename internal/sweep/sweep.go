// Package sweep sequences a grid of load trials against one target.
// Trials run strictly one after another so resource contention on the
// server is always attributable to a single trial, and every trial's
// records are flushed before the next one starts, so an interrupted
// sweep keeps everything it completed.
package sweep

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"envbench/internal/batch"
	"envbench/internal/output"
	"envbench/internal/session"
	"envbench/internal/stats"
	"envbench/internal/validate"
)

// Config describes the full sweep.
type Config struct {
	Target      string
	Modes       []session.Mode
	BatchSizes  []int
	Waits       []time.Duration
	Repetitions int
	Timeout     time.Duration

	Check validate.Check

	// Pause between trials, letting the server settle so one trial's
	// tail does not bleed into the next measurement.
	Pause time.Duration
}

// DistributionError is the fatal pre-flight outcome: fewer distinct
// hosts responded than the deployment is supposed to have.
type DistributionError struct {
	Expected int
	Distinct int
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("load not distributed: %d distinct hosts responded, expected at least %d",
		e.Distinct, e.Expected)
}

// Sweep iterates the cross-product of configurations through the
// batch executor.
type Sweep struct {
	cfg     Config
	writer  *output.Writer
	live    *stats.Live
	drivers map[session.Mode]session.Driver

	completed uint64

	// OnTrial, when set, is called after each trial with its summary.
	OnTrial func(stats.Summary)
}

func New(cfg Config, writer *output.Writer, live *stats.Live) *Sweep {
	drvCfg := session.Config{Target: cfg.Target, Timeout: cfg.Timeout}
	drivers := map[session.Mode]session.Driver{}
	for _, m := range cfg.Modes {
		drivers[m] = session.NewDriver(m, drvCfg)
	}
	return &Sweep{
		cfg:     cfg,
		writer:  writer,
		live:    live,
		drivers: drivers,
	}
}

// Grid expands the cross-product in the order trials will run:
// mode outermost, then wait time, then repetition, then batch size
// innermost. The order is fixed and documented so persisted rows can
// be interpreted without guessing.
func (s *Sweep) Grid() []batch.Config {
	var grid []batch.Config
	for _, mode := range s.cfg.Modes {
		for _, wait := range s.cfg.Waits {
			for rep := 1; rep <= s.cfg.Repetitions; rep++ {
				for _, size := range s.cfg.BatchSizes {
					grid = append(grid, batch.Config{
						Mode:       mode,
						Size:       size,
						Wait:       wait,
						Repetition: rep,
					})
				}
			}
		}
	}
	return grid
}

func (s *Sweep) TotalTrials() int {
	return len(s.cfg.Modes) * len(s.cfg.Waits) * s.cfg.Repetitions * len(s.cfg.BatchSizes)
}

// Completed reports how many trials have finished; safe to call from
// the progress display while the sweep runs.
func (s *Sweep) Completed() int {
	return int(atomic.LoadUint64(&s.completed))
}

// Preflight probes the target with a small batch and verifies the
// distinct-host expectation before any real trial spends time. Returns
// a DistributionError when the check is enabled, marked fatal, and the
// probe falls short.
func (s *Sweep) Preflight(ctx context.Context) error {
	if !s.cfg.Check.Enabled() {
		return nil
	}

	size := s.cfg.Check.MinHosts * 3
	if size < 4 {
		size = 4
	}

	mode := s.cfg.Modes[0]
	log.WithFields(log.Fields{"mode": mode, "probe_size": size}).
		Info("pre-flight host distribution probe")

	exec := &batch.Executor{Driver: s.drivers[mode]}
	out := exec.Run(ctx, batch.Config{Mode: mode, Size: size, Wait: 0})

	report := s.cfg.Check.Evaluate(out.Results)
	if report.Pass {
		log.WithField("distinct_hosts", report.Distinct).Info("pre-flight check passed")
		return nil
	}

	if s.cfg.Check.Fatal {
		return &DistributionError{Expected: report.Expected, Distinct: report.Distinct}
	}
	log.WithFields(log.Fields{"distinct_hosts": report.Distinct, "expected": report.Expected}).
		Warn("pre-flight: load not distributed")
	return nil
}

// Run executes every trial in grid order. Session failures never stop
// the sweep; a batch with zero successes still produces a summary row
// and the sweep moves on.
func (s *Sweep) Run(ctx context.Context) ([]stats.Summary, error) {
	grid := s.Grid()
	summaries := make([]stats.Summary, 0, len(grid))

	for i, cfg := range grid {
		select {
		case <-ctx.Done():
			return summaries, ctx.Err()
		default:
		}

		log.WithFields(log.Fields{
			"trial": fmt.Sprintf("%d/%d", i+1, len(grid)),
			"mode":  cfg.Mode,
			"batch": cfg.Size,
			"wait":  cfg.Wait,
			"rep":   cfg.Repetition,
		}).Debug("trial start")

		exec := &batch.Executor{Driver: s.drivers[cfg.Mode]}
		if s.live != nil {
			exec.OnResult = s.live.Record
		}
		out := exec.Run(ctx, cfg)

		summary := stats.Summarize(stats.Trial{
			Mode:       cfg.Mode,
			URL:        s.cfg.Target,
			BatchSize:  cfg.Size,
			Wait:       cfg.Wait,
			Repetition: cfg.Repetition,
		}, out.Results, out.WallTime)

		if s.writer != nil {
			s.writer.WriteResults(out.Results)
			s.writer.WriteSummary(summary)
		}

		if s.cfg.Check.Enabled() {
			if report := s.cfg.Check.Evaluate(out.Results); !report.Pass {
				log.WithFields(log.Fields{
					"distinct_hosts": report.Distinct,
					"expected":       report.Expected,
					"batch":          cfg.Size,
				}).Warn("load not distributed")
			}
		}

		summaries = append(summaries, summary)
		atomic.AddUint64(&s.completed, 1)

		if s.OnTrial != nil {
			s.OnTrial(summary)
		}

		if s.cfg.Pause > 0 && i < len(grid)-1 {
			select {
			case <-ctx.Done():
				return summaries, ctx.Err()
			case <-time.After(s.cfg.Pause):
			}
		}
	}

	return summaries, nil
}
