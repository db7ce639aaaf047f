// Package monitor keeps the shared registration state healthy over
// time: it watches the proxy registration directory and the ledger for
// changes and reaps stale entries as sessions come and go.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/northpeak-studio/devhost/internal/ledger"
	"github.com/northpeak-studio/devhost/internal/proxy"
)

// debounceWindow batches filesystem event bursts into one sweep.
const debounceWindow = 500 * time.Millisecond

// Monitor periodically and reactively sweeps stale registrations.
type Monitor struct {
	ledger   *ledger.Ledger
	registry *proxy.Registry
	inRange  func(port int) bool
	interval time.Duration
	logger   *slog.Logger
}

// New creates a monitor. Interval is the periodic sweep cadence.
func New(l *ledger.Ledger, reg *proxy.Registry, inRange func(int) bool, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		ledger:   l,
		registry: reg,
		inRange:  inRange,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context is cancelled, sweeping on a timer and
// whenever the watched paths change.
func (m *Monitor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Both paths must exist before they can be watched.
	if err := os.MkdirAll(m.registry.Dir(), 0755); err != nil {
		return fmt.Errorf("create proxy dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.ledger.Path()), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := watcher.Add(m.registry.Dir()); err != nil {
		return fmt.Errorf("watch proxy dir: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.ledger.Path())); err != nil {
		return fmt.Errorf("watch ledger dir: %w", err)
	}

	m.logger.Info("monitoring registrations",
		"proxy_dir", m.registry.Dir(),
		"ledger", m.ledger.Path(),
		"interval", m.interval,
	)

	// Initial sweep picks up anything left over from before we started.
	m.sweep()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.logger.Debug("registration change", "op", event.Op.String(), "path", event.Name)
			debounce.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", "error", err)

		case <-debounce.C:
			m.sweep()

		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep runs one stale sweep and reports removals.
func (m *Monitor) sweep() {
	report, err := m.ledger.SweepStale(m.registry, m.inRange)
	if err != nil {
		m.logger.Warn("sweep failed", "error", err)
		return
	}
	if report.Total() == 0 {
		m.logger.Debug("sweep clean, nothing to remove")
		return
	}
	m.logger.Info("swept stale registrations",
		"entries", report.RemovedEntries,
		"orphans", report.RemovedOrphans,
	)
}
