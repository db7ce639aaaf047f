// Package ledger persists the shared table of active label->port
// registrations. Every concurrent devhost session on the machine reads
// and writes the same file; operations are whole-file read-modify-write
// and the table is advisory - the OS-level bind probe remains the
// authoritative port collision guard.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/northpeak-studio/devhost/internal/proxy"
)

// Entry is one active registration. Entries are immutable once written;
// they are only ever removed, never updated in place.
type Entry struct {
	Branch    string    `json:"branch"`
	Port      int       `json:"port"`
	Pid       int       `json:"pid"`
	Cwd       string    `json:"cwd"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEntry builds an entry for the current moment.
func NewEntry(branch string, port, pid int, cwd string) Entry {
	return Entry{
		Branch:    branch,
		Port:      port,
		Pid:       pid,
		Cwd:       cwd,
		CreatedAt: time.Now().UTC(),
	}
}

// Table is the in-memory form of the ledger file.
type Table struct {
	Entries map[string]Entry `json:"entries"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{Entries: map[string]Entry{}}
}

// Upsert inserts or replaces the entry for a label.
func (t *Table) Upsert(label string, e Entry) {
	if t.Entries == nil {
		t.Entries = map[string]Entry{}
	}
	t.Entries[label] = e
}

// Remove deletes the entry for a label. Removing an absent label is a
// no-op.
func (t *Table) Remove(label string) {
	delete(t.Entries, label)
}

// ProcessProber checks whether a process is still running without
// affecting it. Injected because the underlying mechanism is
// platform-dependent.
type ProcessProber interface {
	Alive(pid int) bool
}

// Ledger loads and saves the shared registration file.
type Ledger struct {
	path  string
	alive ProcessProber
}

// New creates a ledger at path. A nil prober defaults to the
// platform signal-zero probe.
func New(path string, alive ProcessProber) *Ledger {
	if alive == nil {
		alive = DefaultProber{}
	}
	return &Ledger{
		path:  path,
		alive: alive,
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the ledger file. A missing, unreadable, or malformed file
// is treated as an empty table - never an error. A corrupt file heals
// itself on the next Save.
func (l *Ledger) Load() *Table {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return NewTable()
	}

	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		log.Warn().Str("path", l.path).Err(err).Msg("ledger unparseable, treating as empty")
		return NewTable()
	}
	if table.Entries == nil {
		table.Entries = map[string]Entry{}
	}
	return &table
}

// Save overwrites the ledger file with the full table, pretty-printed.
func (l *Ledger) Save(table *Table) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// SweepReport describes what a stale sweep removed.
type SweepReport struct {
	RemovedEntries []string // labels whose owner process was dead
	RemovedOrphans []string // proxy files with no ledger entry
}

// Total returns the number of removals across both categories.
func (r SweepReport) Total() int {
	return len(r.RemovedEntries) + len(r.RemovedOrphans)
}

// SweepStale removes ledger entries whose owning process is no longer
// alive, deleting their proxy registrations alongside, then scans the
// proxy directory for orphaned registration files: files the ledger
// does not reference whose content parses as a port inside the
// configured range. Those are left by sessions that crashed before
// writing a ledger entry, or that predate the ledger entirely.
//
// The sweep is idempotent; running it twice back to back removes
// nothing the second time and never errors on already-absent state.
func (l *Ledger) SweepStale(reg *proxy.Registry, inRange func(port int) bool) (SweepReport, error) {
	var report SweepReport

	table := l.Load()
	for label, entry := range table.Entries {
		if l.alive.Alive(entry.Pid) {
			continue
		}
		log.Info().
			Str("label", label).
			Int("pid", entry.Pid).
			Int("port", entry.Port).
			Msg("reaping stale registration")

		table.Remove(label)
		if err := reg.Deregister(label); err != nil {
			log.Warn().Str("label", label).Err(err).Msg("failed to remove proxy registration")
		}
		report.RemovedEntries = append(report.RemovedEntries, label)
	}

	if len(report.RemovedEntries) > 0 {
		if err := l.Save(table); err != nil {
			return report, err
		}
	}

	// Proxy files nobody owns: content must look like one of our ports,
	// so the sweep never touches registrations made by other tooling.
	regs, err := reg.List()
	if err != nil {
		return report, err
	}
	for label, content := range regs {
		if _, ok := table.Entries[label]; ok {
			continue
		}
		port, ok := proxy.ParsePort(content)
		if !ok || !inRange(port) {
			continue
		}
		log.Info().Str("label", label).Int("port", port).Msg("removing orphaned proxy registration")
		if err := reg.Deregister(label); err != nil {
			log.Warn().Str("label", label).Err(err).Msg("failed to remove orphaned registration")
			continue
		}
		report.RemovedOrphans = append(report.RemovedOrphans, label)
	}

	return report, nil
}
