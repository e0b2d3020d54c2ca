package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/config"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/exporter"
	"codeberg.org/mutker/healthmon/internal/journal"
	"codeberg.org/mutker/healthmon/internal/logger"
	"codeberg.org/mutker/healthmon/internal/monitor"
	"codeberg.org/mutker/healthmon/internal/pid"
	"codeberg.org/mutker/healthmon/internal/source"
	"codeberg.org/mutker/healthmon/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

const (
	onceSettleTime      = time.Second
	journalWriteTimeout = 2 * time.Second
	journalHistory      = 6
)

func main() {
	store, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := store.Config()

	level, _ := logger.ParseLevel(cfg.LogLevel)
	var logFile *os.File
	switch {
	case cfg.Once:
		// stdout carries the exposition
		logger.InitTo(os.Stderr, level)
	case cfg.TUI:
		// stdout belongs to the dashboard
		logFile, err = os.OpenFile(filepath.Join(os.TempDir(), "healthmon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
		logger.InitTo(logFile, level)
	default:
		logger.Init(level, logger.IsService())
	}
	store.SetLogger(logger.Default().With("config"))
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, store); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("healthmon failed")
		} else {
			logger.Error().Err(err).Msg("healthmon failed")
		}
		if logFile != nil {
			fmt.Fprintf(os.Stderr, "healthmon failed: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, store *config.Store) error {
	cfg := store.Config()
	log := logger.Default()

	mon := monitor.New(source.NewSystem(log), store,
		monitor.WithLogger(log),
		monitor.WithReadTimeout(cfg.ReadTimeout))

	exp := exporter.New()
	detach := exp.Attach(mon)
	defer detach()

	if cfg.Once {
		return once(ctx, mon, exp)
	}

	pidFile := pid.New("")
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	rec, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close alert journal")
		}
	}()

	unsubscribe := mon.SubscribeAlerts(journal.Sink(rec, journalWriteTimeout, log))
	defer unsubscribe()

	hostname := logSystemInfo(ctx, mon, log)

	if err := mon.StartMonitoring(); err != nil {
		return err
	}
	defer mon.StopMonitoring()
	store.Watch()

	if cfg.MetricsFile != "" {
		go writeMetrics(ctx, exp, cfg.MetricsFile, store, log)
	}

	if cfg.TUI {
		return runDashboard(ctx, mon, hostname, history(ctx, rec, log))
	}

	<-ctx.Done()
	log.Info().Msg("Exiting...")

	return nil
}

func openJournal(cfg config.Config, log logger.Logger) (journal.Recorder, error) {
	jcfg := journal.DefaultConfig()
	jcfg.Enabled = cfg.Journal
	if cfg.JournalDB != "" {
		jcfg.DBPath = cfg.JournalDB
	}

	return journal.New(jcfg, log)
}

// once samples twice so CPU load and throughput have a baseline, then
// prints the metrics in the Prometheus text format.
func once(ctx context.Context, mon *monitor.Monitor, exp *exporter.Exporter) error {
	mon.SampleOnce(ctx)

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(onceSettleTime):
	}

	mon.SampleOnce(ctx)

	return exp.WriteText(os.Stdout)
}

func logSystemInfo(ctx context.Context, mon *monitor.Monitor, log logger.Logger) string {
	info, err := mon.SystemInformation(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to collect system information")
		hostname, _ := os.Hostname()
		return hostname
	}

	log.Info().
		Str("hostname", info.Hostname).
		Str("os", info.OSName()).
		Str("kernel", info.KernelVersion).
		Str("cpu", info.CPUModel).
		Int("cores", info.CPUCores).
		Uint64("memory_bytes", info.MemoryTotalBytes).
		Strs("gpus", info.GPUs).
		Msg("System information")

	return info.Hostname
}

func writeMetrics(ctx context.Context, exp *exporter.Exporter, path string, store *config.Store, log logger.Logger) {
	changed := make(chan struct{}, 1)
	store.OnSettingsSaved(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	interval := func() time.Duration {
		return time.Duration(store.LoadSettings().IntervalSeconds) * time.Second
	}

	exp.WriteFileEvery(ctx, path, interval, changed, log)
}

// history returns the last journaled alert transitions, oldest first.
func history(ctx context.Context, rec journal.Recorder, log logger.Logger) []alert.Event {
	entries, err := rec.Recent(ctx, journalHistory)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read alert journal")
		return nil
	}

	return journal.Events(entries)
}

func runDashboard(ctx context.Context, mon *monitor.Monitor, hostname string, seed []alert.Event) error {
	model := ui.New(mon, hostname)
	model.Seed(seed)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return errors.New().Wrap(errors.ErrMainLoop, err)
	}

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
