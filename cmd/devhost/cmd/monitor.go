package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/northpeak-studio/devhost/internal/ledger"
	"github.com/northpeak-studio/devhost/internal/monitor"
	"github.com/northpeak-studio/devhost/internal/proxy"
)

var monitorInterval time.Duration

// monitorCmd represents the monitor command.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch registrations and reap stale ones continuously",
	Long: `Run a long-lived watcher over the proxy registration directory and
the shared ledger. Stale registrations are reaped when the watched
files change and on a periodic timer, so abandoned preview sessions
disappear without anyone running cleanup by hand.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 30*time.Second, "periodic sweep interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))

	l := ledger.New(cfg.Ledger.Path, nil)
	reg := proxy.NewRegistry(cfg.Proxy.Dir)
	m := monitor.New(l, reg, cfg.Ports.Contains, monitorInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	return m.Run(ctx)
}
