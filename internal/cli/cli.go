// Package cli is the headless console front end: a progress line while
// trials run, per-trial result lines, and final tables.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"envbench/internal/session"
	"envbench/internal/stats"
	"envbench/internal/sweep"
)

// Run drives a sweep to completion with console progress, returning
// every summary produced. The returned error is nil unless the
// pre-flight check failed fatally or the context was cancelled.
func Run(ctx context.Context, s *sweep.Sweep, cfg sweep.Config, live *stats.Live) ([]stats.Summary, error) {
	printHeader(cfg)

	if err := s.Preflight(ctx); err != nil {
		return nil, err
	}

	s.OnTrial = func(sum stats.Summary) {
		successPct := (1 - sum.ErrorRate) * 100
		fmt.Printf("\r[%s] N=%-6d wait=%-6.2fs rep=%d -> %d/%d success (%.0f%%), wall=%.2fs, eff_conc=%.1fx, rps=%.1f\n",
			strings.ToUpper(string(sum.Mode)), sum.BatchSize, sum.WaitSeconds, sum.Repetition,
			sum.Successful, sum.BatchSize, successPct,
			sum.WallTime, sum.EffectiveConcurrency, sum.RequestsPerSec)
	}

	type runResult struct {
		summaries []stats.Summary
		err       error
	}
	done := make(chan runResult, 1)
	go func() {
		summaries, err := s.Run(ctx)
		done <- runResult{summaries, err}
	}()

	start := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	total := s.TotalTrials()
	for {
		select {
		case res := <-done:
			fmt.Println()
			return res.summaries, res.err
		case <-ticker.C:
			completed := s.Completed()
			pct := float64(completed) / float64(total)
			snap := live.Snapshot()
			fmt.Printf("\r%s %3.0f%% | trial %d/%d | %s | OK: %d | Err: %d | p99: %.0fms",
				progressBar(pct, 20), pct*100,
				completed, total,
				time.Since(start).Round(time.Second),
				snap.Success, snap.Fail, snap.P99Ms)
		}
	}
}

func printHeader(cfg sweep.Config) {
	modes := make([]string, len(cfg.Modes))
	for i, m := range cfg.Modes {
		modes[i] = string(m)
	}

	fmt.Printf("\n🚀 ENVBENCH CONCURRENCY SWEEP\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Target URL  : %s\n", cfg.Target)
	fmt.Printf("Modes       : %s\n", strings.Join(modes, ", "))
	fmt.Printf("Batch sizes : %v\n", cfg.BatchSizes)
	fmt.Printf("Wait times  : %v\n", cfg.Waits)
	fmt.Printf("Repetitions : %d\n", cfg.Repetitions)
	fmt.Printf("Timeout     : %s\n", cfg.Timeout)
	if cfg.Check.Enabled() {
		fatal := "warn"
		if cfg.Check.Fatal {
			fatal = "fatal"
		}
		fmt.Printf("Host check  : >= %d distinct (%s)\n", cfg.Check.MinHosts, fatal)
	}
	fmt.Printf("======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// PrintSummary prints the full per-trial breakdown, used for single
// trials where one table is the whole story.
func PrintSummary(s stats.Summary) {
	fmt.Printf("\n📊 TRIAL RESULTS\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Mode          : %s\n", strings.ToUpper(string(s.Mode)))
	fmt.Printf("Batch size    : %d\n", s.BatchSize)
	fmt.Printf("Wait          : %.2fs\n", s.WaitSeconds)
	fmt.Printf("Success       : %d/%d (%.1f%%)\n", s.Successful, s.BatchSize, (1-s.ErrorRate)*100)
	fmt.Printf("\n⏱️  LATENCY (seconds) [Success Only]\n")
	fmt.Printf("   %-10s %10s %10s %10s %10s\n", "", "P50", "P90", "P95", "P99")
	printPhase("Connect", s.Connect)
	printPhase("Reset", s.Reset)
	printPhase("Step", s.Step)
	printPhase("Total", s.Total)
	fmt.Printf("\nWall time             : %.3fs\n", s.WallTime)
	fmt.Printf("Requests/sec          : %.1f\n", s.RequestsPerSec)
	fmt.Printf("Effective concurrency : %.1fx\n", s.EffectiveConcurrency)
	fmt.Printf("\n🌐 DISTRIBUTION\n")
	fmt.Printf("   Unique PIDs     : %d\n", s.UniquePIDs)
	fmt.Printf("   Unique sessions : %d\n", s.UniqueSessions)
	fmt.Printf("   Unique hosts    : %d\n", s.UniqueHosts)
	fmt.Printf("======================================================================\n")
}

func printPhase(name string, p *stats.Phase) {
	if p == nil {
		fmt.Printf("   %-10s %10s %10s %10s %10s\n", name, "NA", "NA", "NA", "NA")
		return
	}
	fmt.Printf("   %-10s %10.4f %10.4f %10.4f %10.4f\n", name, p.P50, p.P90, p.P95, p.P99)
}

// PrintGridTable prints the final one-line-per-trial overview after a
// sweep.
func PrintGridTable(summaries []stats.Summary) {
	fmt.Printf("\n📊 SWEEP COMPLETE\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("  %-5s %6s %8s %4s %8s %10s %8s %10s\n",
		"Mode", "N", "Wait", "Rep", "Success", "Wall(s)", "RPS", "Eff.Conc")
	for _, s := range summaries {
		fmt.Printf("  %-5s %6d %8.2f %4d %8d %10.2f %8.1f %10.1f\n",
			s.Mode, s.BatchSize, s.WaitSeconds, s.Repetition,
			s.Successful, s.WallTime, s.RequestsPerSec, s.EffectiveConcurrency)
	}
	fmt.Printf("======================================================================\n")
}

// PrintComparison prints HTTP and WS summaries side by side.
func PrintComparison(summaries []stats.Summary) {
	var http, ws *stats.Summary
	for i := range summaries {
		switch summaries[i].Mode {
		case session.ModeHTTP:
			http = &summaries[i]
		case session.ModeWS:
			ws = &summaries[i]
		}
	}
	if http == nil || ws == nil {
		return
	}

	fmt.Printf("\n⚖️  HTTP vs WEBSOCKET\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("  %-28s %15s %15s\n", "Metric", "HTTP", "WebSocket")
	fmt.Printf("  %s %s %s\n", strings.Repeat("-", 28), strings.Repeat("-", 15), strings.Repeat("-", 15))
	fmt.Printf("  %-28s %14.1f%% %14.1f%%\n", "Success Rate", (1-http.ErrorRate)*100, (1-ws.ErrorRate)*100)
	fmt.Printf("  %-28s %15.3f %15.3f\n", "Wall Time (s)", http.WallTime, ws.WallTime)
	fmt.Printf("  %-28s %15.1f %15.1f\n", "Requests/sec", http.RequestsPerSec, ws.RequestsPerSec)
	fmt.Printf("  %-28s %15.1f %15.1f\n", "Effective Concurrency", http.EffectiveConcurrency, ws.EffectiveConcurrency)
	fmt.Printf("  %-28s %15s %15s\n", "Connect P50 (s)", phaseCell(http.Connect, func(p *stats.Phase) float64 { return p.P50 }), phaseCell(ws.Connect, func(p *stats.Phase) float64 { return p.P50 }))
	fmt.Printf("  %-28s %15s %15s\n", "Reset P50 (s)", phaseCell(http.Reset, func(p *stats.Phase) float64 { return p.P50 }), phaseCell(ws.Reset, func(p *stats.Phase) float64 { return p.P50 }))
	fmt.Printf("  %-28s %15s %15s\n", "Step P50 (s)", phaseCell(http.Step, func(p *stats.Phase) float64 { return p.P50 }), phaseCell(ws.Step, func(p *stats.Phase) float64 { return p.P50 }))
	fmt.Printf("  %-28s %15s %15s\n", "Total P95 (s)", phaseCell(http.Total, func(p *stats.Phase) float64 { return p.P95 }), phaseCell(ws.Total, func(p *stats.Phase) float64 { return p.P95 }))
	fmt.Printf("  %-28s %15s %15s\n", "Total P99 (s)", phaseCell(http.Total, func(p *stats.Phase) float64 { return p.P99 }), phaseCell(ws.Total, func(p *stats.Phase) float64 { return p.P99 }))
	fmt.Printf("  %-28s %15d %15d\n", "Unique PIDs", http.UniquePIDs, ws.UniquePIDs)
	fmt.Printf("  %-28s %15d %15d\n", "Unique Sessions", http.UniqueSessions, ws.UniqueSessions)
	fmt.Printf("  %-28s %15d %15d\n", "Unique Hosts", http.UniqueHosts, ws.UniqueHosts)
	fmt.Printf("======================================================================\n")
}

func phaseCell(p *stats.Phase, pick func(*stats.Phase) float64) string {
	if p == nil {
		return "NA"
	}
	return fmt.Sprintf("%.4f", pick(p))
}
