package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/northpeak-studio/devhost/internal/ledger"
)

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active branch registrations",
	Long: `Show every registration in the shared ledger with its port, owning
process, and whether that process is still alive. Stale rows are
candidates for 'devhost cleanup'.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	l := ledger.New(cfg.Ledger.Path, nil)
	table := l.Load()

	if len(table.Entries) == 0 {
		fmt.Println("no active registrations")
		return nil
	}

	labels := make([]string, 0, len(table.Entries))
	for label := range table.Entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var prober ledger.DefaultProber
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tPORT\tPID\tSTATE\tBRANCH\tSINCE")
	for _, label := range labels {
		entry := table.Entries[label]
		state := "live"
		if !prober.Alive(entry.Pid) {
			state = "stale"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			label,
			entry.Port,
			entry.Pid,
			state,
			entry.Branch,
			entry.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
