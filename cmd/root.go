package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"envbench/internal/banner"
	"envbench/internal/cli"
	"envbench/internal/output"
	"envbench/internal/session"
	"envbench/internal/stats"
	"envbench/internal/storage"
	"envbench/internal/sweep"
	"envbench/internal/tui"
	"envbench/internal/validate"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	cfgFile string

	// CLI Flags
	url        string
	timeout    int
	batchSize  int
	wait       float64
	mode       string
	batchGrid  string
	waitGrid   string
	reps       int
	compare    bool
	outputDir  string
	verbose    bool
	expectHost int
	hostsFatal bool
	useTUI     bool
	noHistory  bool
)

var rootCmd = &cobra.Command{
	Use:   "envbench",
	Short: "envbench - Environment Server Concurrency Harness",
	Long: `
envbench measures the maximum safe concurrency of an environment
server over WebSocket (streaming) and HTTP (request/response).

It drives batches of fully concurrent sessions, records per-phase
latencies (connect/reset/step), sweeps grids of batch sizes and wait
times, and appends raw JSONL records plus a CSV summary per trial.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarness()
	},
}

// Execute runs the root command. Session failures never surface here;
// a non-nil error means bad configuration or a fatal pre-flight check,
// and those are the only non-zero exits.
func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.envbench.yaml)")

	rootCmd.Flags().StringVarP(&url, "url", "u", "", "Target server URL (required)")
	rootCmd.Flags().IntVarP(&timeout, "timeout", "t", 120, "Per-session timeout in seconds")
	rootCmd.Flags().IntVarP(&batchSize, "batch-size", "n", 10, "Concurrent sessions per batch")
	rootCmd.Flags().Float64VarP(&wait, "wait", "w", 1.0, "Server-side wait per step in seconds")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "ws", "Transport mode: ws or http")
	rootCmd.Flags().StringVar(&batchGrid, "batch-grid", "", "Comma-separated batch sizes (e.g. 1,2,4,8,16)")
	rootCmd.Flags().StringVar(&waitGrid, "wait-grid", "", "Comma-separated wait times in seconds (e.g. 0.1,1.0)")
	rootCmd.Flags().IntVar(&reps, "reps", 1, "Repetitions per grid cell")
	rootCmd.Flags().BoolVar(&compare, "compare", false, "Run both HTTP and WS per cell")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for raw.jsonl and summary.csv")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.Flags().IntVar(&expectHost, "expect-hosts", 0, "Minimum distinct backend hosts expected")
	rootCmd.Flags().BoolVar(&hostsFatal, "hosts-fatal", false, "Abort the sweep when the host check fails pre-flight")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Live progress TUI instead of plain output")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip saving the run to local history")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".envbench")
		}
	}
	viper.SetEnvPrefix("envbench")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// buildConfig turns the flag surface into a sweep config. All the
// "invalid configuration" exits come from here.
func buildConfig() (sweep.Config, error) {
	var cfg sweep.Config

	if url == "" {
		return cfg, fmt.Errorf("--url is required")
	}
	cfg.Target = url
	cfg.Timeout = time.Duration(timeout) * time.Second
	cfg.Pause = 500 * time.Millisecond

	switch {
	case compare:
		cfg.Modes = []session.Mode{session.ModeHTTP, session.ModeWS}
	case mode == string(session.ModeHTTP):
		cfg.Modes = []session.Mode{session.ModeHTTP}
	case mode == string(session.ModeWS):
		cfg.Modes = []session.Mode{session.ModeWS}
	default:
		return cfg, fmt.Errorf("unknown mode %q (want ws or http)", mode)
	}

	if batchGrid != "" {
		sizes, err := parseIntList(batchGrid)
		if err != nil {
			return cfg, err
		}
		cfg.BatchSizes = sizes
	} else {
		if batchSize < 1 {
			return cfg, fmt.Errorf("batch size must be positive, got %d", batchSize)
		}
		cfg.BatchSizes = []int{batchSize}
	}

	if waitGrid != "" {
		waits, err := parseWaitList(waitGrid)
		if err != nil {
			return cfg, err
		}
		cfg.Waits = waits
	} else {
		if wait < 0 {
			return cfg, fmt.Errorf("wait must be non-negative, got %g", wait)
		}
		cfg.Waits = []time.Duration{time.Duration(wait * float64(time.Second))}
	}

	if reps < 1 {
		return cfg, fmt.Errorf("reps must be at least 1, got %d", reps)
	}
	cfg.Repetitions = reps

	cfg.Check = validate.Check{MinHosts: expectHost, Fatal: hostsFatal}

	return cfg, nil
}

func runHarness() error {
	setupLogging()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	var writer *output.Writer
	if outputDir != "" {
		writer, err = output.New(outputDir)
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	live := stats.NewLive()
	s := sweep.New(cfg, writer, live)

	ctx := context.Background()

	var summaries []stats.Summary
	if useTUI {
		summaries, err = runWithTUI(ctx, s, cfg, live)
	} else {
		summaries, err = cli.Run(ctx, s, cfg, live)
	}
	if err != nil {
		return err
	}

	switch {
	case compare:
		cli.PrintComparison(summaries)
	case len(summaries) == 1:
		cli.PrintSummary(summaries[0])
	default:
		cli.PrintGridTable(summaries)
	}

	if outputDir != "" {
		fmt.Printf("\n💾 Results saved to %s/{%s,%s}\n", outputDir, output.RawFileName, output.SummaryFileName)
	}

	if !noHistory {
		saveHistory(cfg, summaries)
	}

	return nil
}

func runWithTUI(ctx context.Context, s *sweep.Sweep, cfg sweep.Config, live *stats.Live) ([]stats.Summary, error) {
	// The fatal pre-flight runs before the screen takes over, so its
	// error message is not swallowed by the alt screen.
	if err := s.Preflight(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type runResult struct {
		summaries []stats.Summary
		err       error
	}
	done := make(chan runResult, 1)
	go func() {
		summaries, err := s.Run(ctx)
		done <- runResult{summaries, err}
	}()

	m := tui.NewModel(s, cfg, live)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return nil, err
	}

	// Quitting the TUI early cancels the remaining trials; completed
	// ones were already flushed.
	cancel()
	res := <-done
	if res.err == context.Canceled {
		res.err = nil
	}
	return res.summaries, res.err
}

func saveHistory(cfg sweep.Config, summaries []stats.Summary) {
	store, err := storage.Open()
	if err != nil {
		log.WithError(err).Warn("history store unavailable")
		return
	}
	defer store.Close()

	modes := make([]string, len(cfg.Modes))
	for i, m := range cfg.Modes {
		modes[i] = string(m)
	}

	rec := storage.RunRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Target:    cfg.Target,
		Modes:     modes,
		Summaries: summaries,
	}
	if err := store.Save(rec); err != nil {
		log.WithError(err).Warn("save run history")
	}
}
