package batch_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/batch"
	"envbench/internal/session"
)

// stubDriver simulates sessions without a network: sleeps for the
// requested wait, fails ids divisible by failEvery.
type stubDriver struct {
	failEvery int
	hang      time.Duration
	hangID    int
}

func (d *stubDriver) Mode() session.Mode { return session.ModeHTTP }

func (d *stubDriver) Run(ctx context.Context, id int, wait time.Duration) session.Result {
	delay := wait
	if d.hang > 0 && id == d.hangID {
		delay = d.hang
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	res := session.Result{
		RequestID:    id,
		Mode:         session.ModeHTTP,
		TotalLatency: delay.Seconds(),
		Success:      true,
		HostURL:      "stub",
	}
	if d.failEvery > 0 && id%d.failEvery == 0 {
		res.Success = false
		res.ErrorType = session.ErrServer
		res.ErrorMessage = "stub failure"
	}
	return res
}

func TestExecutorExactBatchSize(t *testing.T) {
	for _, size := range []int{1, 10, 100} {
		exec := &batch.Executor{Driver: &stubDriver{failEvery: 3}}
		out := exec.Run(context.Background(), batch.Config{Mode: session.ModeHTTP, Size: size})

		require.Len(t, out.Results, size, "size %d", size)

		success, fail := 0, 0
		for i, r := range out.Results {
			assert.Equal(t, i, r.RequestID)
			assert.Equal(t, size, r.BatchSize)
			if r.Success {
				success++
			} else {
				fail++
			}
		}
		assert.Equal(t, size, success+fail)
	}
}

func TestExecutorRunsConcurrently(t *testing.T) {
	const size = 20
	wait := 100 * time.Millisecond

	exec := &batch.Executor{Driver: &stubDriver{}}
	out := exec.Run(context.Background(), batch.Config{Mode: session.ModeHTTP, Size: size, Wait: wait})

	require.Len(t, out.Results, size)
	// Serialized execution would take size*wait = 2s. Allow generous
	// scheduling noise but reject anything close to serial.
	assert.Less(t, out.WallTime, 5*wait)
	assert.GreaterOrEqual(t, out.WallTime, wait)
}

func TestExecutorSlowSessionDoesNotBlockOthers(t *testing.T) {
	exec := &batch.Executor{Driver: &stubDriver{hang: 300 * time.Millisecond, hangID: 4}}
	out := exec.Run(context.Background(), batch.Config{Mode: session.ModeHTTP, Size: 10, Wait: 10 * time.Millisecond})

	require.Len(t, out.Results, 10)
	// Collection waits for the slowest, not for the sum.
	assert.GreaterOrEqual(t, out.WallTime, 300*time.Millisecond)
	assert.Less(t, out.WallTime, 600*time.Millisecond)
}

func TestExecutorOnResultSeesEveryOutcome(t *testing.T) {
	var seen int64
	exec := &batch.Executor{
		Driver:   &stubDriver{failEvery: 2},
		OnResult: func(session.Result) { atomic.AddInt64(&seen, 1) },
	}
	out := exec.Run(context.Background(), batch.Config{Mode: session.ModeHTTP, Size: 50})

	require.Len(t, out.Results, 50)
	assert.Equal(t, int64(50), atomic.LoadInt64(&seen))
}
