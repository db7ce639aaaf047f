package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/northpeak-studio/devhost/internal/config"
	"github.com/northpeak-studio/devhost/internal/ledger"
)

var (
	doctorJSON   bool
	doctorStrict bool
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string                 `json:"id"`
	Status      doctorStatus           `json:"status"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

type doctorSummary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

type doctorReport struct {
	GeneratedAt string        `json:"generated_at"`
	Overall     doctorStatus  `json:"overall_status"`
	Summary     doctorSummary `json:"summary"`
	Checks      []doctorCheck `json:"checks"`
}

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local diagnostics with remediation hints",
	Long: `Run read-only diagnostics against the local devhost setup and print
actionable hints.

By default the output is human-readable text.
Use --json for machine-readable output.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output machine-readable JSON")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "return non-zero on warnings")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := collectDoctorReport()

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printDoctorText(report)
	}

	if report.Summary.Fail > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	if doctorStrict && report.Summary.Warn > 0 {
		return fmt.Errorf("doctor strict mode failed with %d warning(s)", report.Summary.Warn)
	}
	return nil
}

func collectDoctorReport() doctorReport {
	checks := make([]doctorCheck, 0, 8)

	cfg, cfgCheck := checkConfigLoad(cfgFile)
	checks = append(checks, cfgCheck)
	checks = append(checks, checkConfigFileSyntax())
	checks = append(checks, checkGitBinary())

	if cfg != nil {
		checks = append(checks, checkPortRange(&cfg.Ports))
		checks = append(checks, checkProxyDir(cfg.Proxy.Dir))
		checks = append(checks, checkLedgerFile(cfg.Ledger.Path))
	}

	summary := summarizeDoctorChecks(checks)
	return doctorReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Overall:     overallStatus(summary),
		Summary:     summary,
		Checks:      checks,
	}
}

func checkConfigLoad(path string) (*config.Config, doctorCheck) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, doctorCheck{
			ID:          "config.load",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to load config: %v", err),
			Remediation: "Fix the config file syntax or remove it to fall back to defaults.",
		}
	}
	return cfg, doctorCheck{
		ID:      "config.load",
		Status:  doctorStatusOK,
		Message: "Configuration loaded successfully",
		Details: map[string]interface{}{
			"proxy_dir": cfg.Proxy.Dir,
			"ledger":    cfg.Ledger.Path,
			"ports":     fmt.Sprintf("%d-%d", cfg.Ports.Min, cfg.Ports.Max),
		},
	}
}

// checkConfigFileSyntax validates the user config file as YAML when it
// exists; a missing file is fine, viper defaults cover everything.
func checkConfigFileSyntax() doctorCheck {
	dir, err := config.GetConfigDir()
	if err != nil {
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to resolve config directory: %v", err),
			Remediation: "Verify your HOME environment and filesystem permissions.",
		}
	}

	path := filepath.Join(dir, "config.yaml")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      "config.file",
				Status:  doctorStatusOK,
				Message: "No user config file; using built-in defaults",
				Details: map[string]interface{}{"path": path},
			}
		}
		return doctorCheck{
			ID:          "config.file",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Config file unreadable: %v", err),
			Remediation: "Check file permissions on " + path + ".",
		}
	}

	var payload map[string]interface{}
	if err := yaml.Unmarshal(content, &payload); err != nil {
		return doctorCheck{
			ID:          "config.file",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Invalid YAML format: %v", err),
			Details:     map[string]interface{}{"path": path},
			Remediation: "Fix YAML syntax errors in the file or delete it.",
		}
	}

	return doctorCheck{
		ID:      "config.file",
		Status:  doctorStatusOK,
		Message: "User config file is valid YAML",
		Details: map[string]interface{}{"path": path},
	}
}

func checkGitBinary() doctorCheck {
	path, err := exec.LookPath("git")
	if err != nil {
		return doctorCheck{
			ID:          "runtime.git",
			Status:      doctorStatusWarn,
			Message:     "git not found on PATH",
			Remediation: "Install git; without it devhost falls back to directory-name identities.",
		}
	}
	return doctorCheck{
		ID:      "runtime.git",
		Status:  doctorStatusOK,
		Message: "git binary found",
		Details: map[string]interface{}{"path": path},
	}
}

func checkPortRange(ports *config.PortsConfig) doctorCheck {
	width := ports.Max - ports.Min + 1
	if width < 10 {
		return doctorCheck{
			ID:          "ports.range",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Port range %d-%d is very narrow (%d ports)", ports.Min, ports.Max, width),
			Remediation: "Widen ports.min/ports.max so concurrent branches rarely collide.",
		}
	}

	inRange := 0
	for _, p := range ports.Reserved {
		if ports.Contains(p) {
			inRange++
		}
	}
	return doctorCheck{
		ID:      "ports.range",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Port range %d-%d (%d ports, %d reserved in range)", ports.Min, ports.Max, width, inRange),
	}
}

func checkProxyDir(dir string) doctorCheck {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return doctorCheck{
			ID:          "proxy.dir",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Proxy directory not creatable: %v", err),
			Remediation: "Check permissions on " + dir + " or point proxy.dir elsewhere.",
		}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("0"), 0644); err != nil {
		return doctorCheck{
			ID:          "proxy.dir",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Proxy directory not writable: %v", err),
			Remediation: "Check permissions on " + dir + ".",
		}
	}
	_ = os.Remove(probe)

	return doctorCheck{
		ID:      "proxy.dir",
		Status:  doctorStatusOK,
		Message: "Proxy directory is writable",
		Details: map[string]interface{}{"path": dir},
	}
}

func checkLedgerFile(path string) doctorCheck {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      "ledger.file",
				Status:  doctorStatusOK,
				Message: "Ledger does not exist yet (created on first run)",
				Details: map[string]interface{}{"path": path},
			}
		}
		return doctorCheck{
			ID:          "ledger.file",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Ledger unreadable: %v", err),
			Remediation: "Check permissions on " + path + ".",
		}
	}

	var table ledger.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return doctorCheck{
			ID:          "ledger.file",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Ledger is not valid JSON: %v", err),
			Remediation: "Safe to ignore; the file is treated as empty and rewritten on next run.",
		}
	}

	return doctorCheck{
		ID:      "ledger.file",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("Ledger is valid (%d entries)", len(table.Entries)),
		Details: map[string]interface{}{"path": path},
	}
}

func summarizeDoctorChecks(checks []doctorCheck) doctorSummary {
	summary := doctorSummary{Total: len(checks)}
	for _, check := range checks {
		switch check.Status {
		case doctorStatusOK:
			summary.OK++
		case doctorStatusWarn:
			summary.Warn++
		case doctorStatusFail:
			summary.Fail++
		}
	}
	return summary
}

func overallStatus(summary doctorSummary) doctorStatus {
	switch {
	case summary.Fail > 0:
		return doctorStatusFail
	case summary.Warn > 0:
		return doctorStatusWarn
	default:
		return doctorStatusOK
	}
}

func printDoctorText(report doctorReport) {
	fmt.Printf("devhost doctor\n")
	fmt.Printf("generated_at: %s\n", report.GeneratedAt)
	fmt.Printf("overall: %s  (ok=%d warn=%d fail=%d total=%d)\n\n",
		strings.ToUpper(string(report.Overall)),
		report.Summary.OK,
		report.Summary.Warn,
		report.Summary.Fail,
		report.Summary.Total,
	)

	for _, check := range report.Checks {
		label := "[OK]"
		if check.Status == doctorStatusWarn {
			label = "[WARN]"
		}
		if check.Status == doctorStatusFail {
			label = "[FAIL]"
		}

		fmt.Printf("%s %s: %s\n", label, check.ID, check.Message)
		if check.Remediation != "" && check.Status != doctorStatusOK {
			fmt.Printf("  fix: %s\n", check.Remediation)
		}
	}

	fmt.Println()
	fmt.Println("Tip: run `devhost doctor --json` for machine-readable output.")
}
