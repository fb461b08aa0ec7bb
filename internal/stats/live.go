package stats

import (
	"sync/atomic"
	"time"

	"envbench/internal/session"
)

// Live holds sweep-wide cumulative metrics, updated from many session
// goroutines and read by the progress display.
type Live struct {
	Sessions uint64
	Success  uint64
	Fail     uint64

	// Total session latency across the whole sweep (microseconds).
	TotalTime *SafeHistogram
}

func NewLive() *Live {
	return &Live{
		TotalTime: NewSafeHistogram(),
	}
}

// Record folds one session outcome into the cumulative view.
func (l *Live) Record(r session.Result) {
	atomic.AddUint64(&l.Sessions, 1)
	if r.Success {
		atomic.AddUint64(&l.Success, 1)
	} else {
		atomic.AddUint64(&l.Fail, 1)
	}
	l.TotalTime.RecordDuration(time.Duration(r.TotalLatency * float64(time.Second)))
}

func (l *Live) ErrorRate() float64 {
	n := atomic.LoadUint64(&l.Sessions)
	if n == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&l.Fail)) / float64(n) * 100
}

func (l *Live) GetP50Ms() float64 {
	return float64(l.TotalTime.ValueAtQuantile(50)) / 1000.0
}

func (l *Live) GetP99Ms() float64 {
	return float64(l.TotalTime.ValueAtQuantile(99)) / 1000.0
}

// Snapshot is a cheap copy pushed over a channel to the UI.
type Snapshot struct {
	Sessions uint64
	Success  uint64
	Fail     uint64

	P50Ms float64
	P99Ms float64
	MaxMs int64
}

func (l *Live) Snapshot() Snapshot {
	return Snapshot{
		Sessions: atomic.LoadUint64(&l.Sessions),
		Success:  atomic.LoadUint64(&l.Success),
		Fail:     atomic.LoadUint64(&l.Fail),
		P50Ms:    l.GetP50Ms(),
		P99Ms:    l.GetP99Ms(),
		MaxMs:    l.TotalTime.Max() / 1000,
	}
}
