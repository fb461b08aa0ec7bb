// Package batch launches one batch of concurrent sessions and collects
// every outcome. There is deliberately no pacing, pooling or admission
// control: the point is to find where the server breaks, not to be
// polite to it.
package batch

import (
	"context"
	"sync"
	"time"

	"envbench/internal/session"
)

// Config is one cell of the sweep's cross-product.
type Config struct {
	Mode       session.Mode
	Size       int
	Wait       time.Duration
	Repetition int
}

// Outcome carries everything a batch produced.
type Outcome struct {
	Config   Config
	Results  []session.Result
	WallTime time.Duration
}

// Executor runs batches through a session driver.
type Executor struct {
	Driver session.Driver

	// OnResult, when set, is called from the session goroutine as each
	// outcome settles. Used to feed the live stats; must be
	// goroutine-safe.
	OnResult func(session.Result)
}

// Run launches exactly cfg.Size sessions concurrently and waits for
// all of them to settle. A hung session is bounded by its own timeout
// inside the driver, so collection always completes, and the result
// slice always has exactly cfg.Size entries.
func (e *Executor) Run(ctx context.Context, cfg Config) Outcome {
	results := make([]session.Result, cfg.Size)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < cfg.Size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r := e.Driver.Run(ctx, id, cfg.Wait)
			r.BatchSize = cfg.Size
			results[id] = r
			if e.OnResult != nil {
				e.OnResult(r)
			}
		}(i)
	}
	wg.Wait()

	return Outcome{
		Config:   cfg,
		Results:  results,
		WallTime: time.Since(start),
	}
}
