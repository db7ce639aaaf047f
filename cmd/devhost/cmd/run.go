package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/northpeak-studio/devhost/internal/session"
)

var (
	pinnedPort int
	dryRun     bool
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run [flags] [-- command...]",
	Short: "Allocate a subdomain and port, then run the dev server",
	Long: `Resolve the current branch, derive its subdomain label and port,
register both with the local proxy directory and the shared ledger,
and supervise the dev server with the port injected into its
environment (PORT, DEVHOST_PORT, DEVHOST_SUBDOMAIN).

The port is deterministic per branch: the same branch gets the
same port on an idle machine, so preview URLs stay stable.

Example:
  devhost run                          # supervise the configured dev server
  devhost run -- npm run dev           # supervise an explicit command
  devhost run --port 4500              # pin the port, skip allocation
  devhost run --dry-run                # preview label and port, no side effects

The session exits with the dev server's exit code, or 0 when shut
down by SIGINT, SIGTERM, or SIGHUP.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&pinnedPort, "port", 0, "use this port instead of allocating one")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the label and port without side effects")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Int("port_min", cfg.Ports.Min).
		Int("port_max", cfg.Ports.Max).
		Msg("starting devhost")

	ctrl := session.New(cfg)
	code, err := ctrl.Run(context.Background(), session.Options{
		PinnedPort: pinnedPort,
		DryRun:     dryRun,
		Command:    args,
	})
	if err != nil {
		return err
	}

	if code != 0 {
		os.Exit(code)
	}
	return nil
}
