package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northpeak-studio/devhost/internal/ledger"
	"github.com/northpeak-studio/devhost/internal/proxy"
)

// cleanupCmd represents the cleanup command.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reap registrations left by dead sessions",
	Long: `Scan the shared ledger for entries whose owning process is gone and
remove them, together with their proxy registration files. Proxy files
nobody owns - content parsing as a port inside the configured range
but absent from the ledger - are removed as well.

Safe to run at any time, from any directory, as often as you like.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	l := ledger.New(cfg.Ledger.Path, nil)
	reg := proxy.NewRegistry(cfg.Proxy.Dir)

	report, err := l.SweepStale(reg, cfg.Ports.Contains)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if report.Total() == 0 {
		fmt.Println("nothing to clean up")
		return nil
	}

	for _, label := range report.RemovedEntries {
		fmt.Printf("removed stale entry: %s\n", label)
	}
	for _, label := range report.RemovedOrphans {
		fmt.Printf("removed orphaned registration: %s\n", label)
	}
	fmt.Printf("%d removed\n", report.Total())
	return nil
}
