// Package output persists raw session records and batch summaries.
// Both files are append-only: one JSON object per line in raw.jsonl,
// one row per batch in summary.csv. A single goroutine owns the file
// handles and applies writes in arrival order, so the many
// independently-completing session goroutines never touch the files
// directly and no record interleaves with another.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"envbench/internal/session"
	"envbench/internal/stats"
)

const (
	RawFileName     = "raw.jsonl"
	SummaryFileName = "summary.csv"
)

// summaryColumns is the fixed schema for summary.csv. It never changes
// mid-sweep; percentile cells read NA when a batch had no successful
// sessions.
var summaryColumns = []string{
	"mode", "url", "batch_size", "wait_seconds", "repetition", "timestamp",
	"successful", "failed", "error_rate", "total_wall_time",
	"connect_p50", "connect_p90", "connect_p95", "connect_p99",
	"reset_p50", "reset_p90", "reset_p95", "reset_p99",
	"step_p50", "step_p90", "step_p95", "step_p99",
	"total_p50", "total_p90", "total_p95", "total_p99",
	"total_min", "total_max", "total_avg",
	"requests_per_second", "effective_concurrency",
	"unique_pids", "unique_sessions", "unique_hosts",
}

type Writer struct {
	ch   chan interface{}
	done chan struct{}

	raw     *os.File
	rawBuf  *bufio.Writer
	summary *os.File
	csv     *csv.Writer
}

// New opens (or creates) the output files in dir and starts the owner
// goroutine. An unwritable directory is a configuration error and is
// reported here, before any trial runs.
func New(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	raw, err := os.OpenFile(filepath.Join(dir, RawFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	summary, err := os.OpenFile(filepath.Join(dir, SummaryFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("open summary table: %w", err)
	}

	w := &Writer{
		ch:      make(chan interface{}, 256),
		done:    make(chan struct{}),
		raw:     raw,
		rawBuf:  bufio.NewWriter(raw),
		summary: summary,
		csv:     csv.NewWriter(summary),
	}

	// Header only on a fresh (empty) file, so interrupted sweeps can
	// be resumed into the same directory.
	if info, err := summary.Stat(); err == nil && info.Size() == 0 {
		w.csv.Write(summaryColumns)
		w.csv.Flush()
	}

	go w.loop()
	return w, nil
}

// WriteResults queues session records for appending, in order.
func (w *Writer) WriteResults(results []session.Result) {
	for _, r := range results {
		w.ch <- r
	}
}

// WriteSummary queues one summary row.
func (w *Writer) WriteSummary(s stats.Summary) {
	w.ch <- s
}

// Close drains pending writes and closes the files.
func (w *Writer) Close() error {
	close(w.ch)
	<-w.done
	w.rawBuf.Flush()
	w.csv.Flush()
	err := w.raw.Close()
	if err2 := w.summary.Close(); err == nil {
		err = err2
	}
	return err
}

func (w *Writer) loop() {
	defer close(w.done)
	for msg := range w.ch {
		switch v := msg.(type) {
		case session.Result:
			w.writeResult(v)
		case stats.Summary:
			w.writeSummary(v)
		}
	}
}

// Each record is flushed before the next is taken, so a crash loses at
// most the one in-flight record.
func (w *Writer) writeResult(r session.Result) {
	line, err := json.Marshal(r)
	if err != nil {
		log.WithError(err).Error("marshal session record")
		return
	}
	line = append(line, '\n')
	if _, err := w.rawBuf.Write(line); err != nil {
		log.WithError(err).Error("append session record")
		return
	}
	if err := w.rawBuf.Flush(); err != nil {
		log.WithError(err).Error("flush session log")
	}
}

func (w *Writer) writeSummary(s stats.Summary) {
	row := []string{
		string(s.Mode), s.URL,
		strconv.Itoa(s.BatchSize),
		num(s.WaitSeconds),
		strconv.Itoa(s.Repetition),
		s.Timestamp,
		strconv.Itoa(s.Successful),
		strconv.Itoa(s.Failed),
		num(s.ErrorRate),
		num(s.WallTime),
	}
	row = append(row, phaseCells(s.Connect)...)
	row = append(row, phaseCells(s.Reset)...)
	row = append(row, phaseCells(s.Step)...)
	row = append(row, phaseCells(s.Total)...)

	if s.Total != nil {
		row = append(row, num(s.TotalMin), num(s.TotalMax), num(s.TotalAvg))
	} else {
		row = append(row, "NA", "NA", "NA")
	}

	row = append(row,
		num(s.RequestsPerSec),
		num(s.EffectiveConcurrency),
		strconv.Itoa(s.UniquePIDs),
		strconv.Itoa(s.UniqueSessions),
		strconv.Itoa(s.UniqueHosts),
	)

	if err := w.csv.Write(row); err != nil {
		log.WithError(err).Error("append summary row")
		return
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		log.WithError(err).Error("flush summary table")
	}
}

func phaseCells(p *stats.Phase) []string {
	if p == nil {
		return []string{"NA", "NA", "NA", "NA"}
	}
	return []string{num(p.P50), num(p.P90), num(p.P95), num(p.P99)}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
