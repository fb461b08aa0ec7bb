package stats

import (
	"sort"
	"time"

	"envbench/internal/session"
)

// Phase holds the percentile latencies for one session phase, in
// seconds. A nil *Phase means "not available" (no samples), which is
// distinct from a measured zero.
type Phase struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Trial identifies the configuration a batch ran under.
type Trial struct {
	Mode       session.Mode  `json:"mode"`
	URL        string        `json:"url"`
	BatchSize  int           `json:"batch_size"`
	Wait       time.Duration `json:"wait"`
	Repetition int           `json:"repetition"`
}

// Summary is the aggregated view of one batch. Derived fresh per
// batch, never mutated afterwards.
type Summary struct {
	Mode        session.Mode `json:"mode"`
	URL         string       `json:"url"`
	BatchSize   int          `json:"batch_size"`
	WaitSeconds float64      `json:"wait_seconds"`
	Repetition  int          `json:"repetition"`
	Timestamp   string       `json:"timestamp"`

	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	ErrorRate  float64 `json:"error_rate"`

	WallTime float64 `json:"total_wall_time"`

	Connect *Phase `json:"connect,omitempty"`
	Reset   *Phase `json:"reset,omitempty"`
	Step    *Phase `json:"step,omitempty"`
	Total   *Phase `json:"total,omitempty"`

	TotalMin float64 `json:"total_min"`
	TotalMax float64 `json:"total_max"`
	TotalAvg float64 `json:"total_avg"`

	RequestsPerSec       float64 `json:"requests_per_second"`
	EffectiveConcurrency float64 `json:"effective_concurrency"`

	UniquePIDs     int `json:"unique_pids"`
	UniqueSessions int `json:"unique_sessions"`
	UniqueHosts    int `json:"unique_hosts"`
}

// Percentile computes the p-th percentile of data by linear
// interpolation between closest ranks: k = (n-1)*p/100, interpolating
// between floor(k) and ceil(k). This is applied consistently to every
// phase; with small samples it differs visibly from nearest-rank, so
// the method is fixed here on purpose.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * p / 100
	f := int(k)
	c := f + 1
	if c > len(sorted)-1 {
		c = len(sorted) - 1
	}
	return sorted[f] + (k-float64(f))*(sorted[c]-sorted[f])
}

func phaseOf(samples []float64) *Phase {
	if len(samples) == 0 {
		return nil
	}
	return &Phase{
		P50: Percentile(samples, 50),
		P90: Percentile(samples, 90),
		P95: Percentile(samples, 95),
		P99: Percentile(samples, 99),
	}
}

// Summarize aggregates one batch's results. Percentiles cover
// successful sessions only; connect/reset/step additionally skip
// sessions where the phase never ran (duration 0). Zero successes
// leaves every phase nil rather than fabricating zeros.
func Summarize(trial Trial, results []session.Result, wall time.Duration) Summary {
	s := Summary{
		Mode:        trial.Mode,
		URL:         trial.URL,
		BatchSize:   trial.BatchSize,
		WaitSeconds: trial.Wait.Seconds(),
		Repetition:  trial.Repetition,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		WallTime:    wall.Seconds(),
	}

	var connect, reset, step, total []float64
	pids := map[int]struct{}{}
	hashes := map[string]struct{}{}
	hosts := map[string]struct{}{}

	for _, r := range results {
		if !r.Success {
			s.Failed++
			continue
		}
		s.Successful++

		if r.ConnectLatency > 0 {
			connect = append(connect, r.ConnectLatency)
		}
		if r.ResetLatency > 0 {
			reset = append(reset, r.ResetLatency)
		}
		if r.StepLatency > 0 {
			step = append(step, r.StepLatency)
		}
		total = append(total, r.TotalLatency)

		if r.PID != 0 {
			pids[r.PID] = struct{}{}
		}
		if r.SessionHash != "" {
			hashes[r.SessionHash] = struct{}{}
		}
		if r.HostURL != "" {
			hosts[r.HostURL] = struct{}{}
		}
	}

	if n := len(results); n > 0 {
		s.ErrorRate = float64(s.Failed) / float64(n)
	}

	s.Connect = phaseOf(connect)
	s.Reset = phaseOf(reset)
	s.Step = phaseOf(step)
	s.Total = phaseOf(total)

	if len(total) > 0 {
		s.TotalMin = total[0]
		s.TotalMax = total[0]
		var sum float64
		for _, v := range total {
			if v < s.TotalMin {
				s.TotalMin = v
			}
			if v > s.TotalMax {
				s.TotalMax = v
			}
			sum += v
		}
		s.TotalAvg = sum / float64(len(total))
	}

	if wall > 0 {
		s.RequestsPerSec = float64(s.Successful) / wall.Seconds()
		s.EffectiveConcurrency = float64(trial.BatchSize) * trial.Wait.Seconds() / wall.Seconds()
	}

	s.UniquePIDs = len(pids)
	s.UniqueSessions = len(hashes)
	s.UniqueHosts = len(hosts)

	return s
}
