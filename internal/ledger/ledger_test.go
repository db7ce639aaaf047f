package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/northpeak-studio/devhost/internal/proxy"
)

// fakeProber treats a fixed pid set as alive.
type fakeProber map[int]bool

func (f fakeProber) Alive(pid int) bool { return f[pid] }

func inDefaultRange(port int) bool { return port >= 4400 && port <= 5400 }

func testEntry(port, pid int) Entry {
	return Entry{
		Branch:    "feature/add-login",
		Port:      port,
		Pid:       pid,
		Cwd:       "/tmp/site",
		CreatedAt: time.Now().UTC(),
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "ledger.json"), fakeProber{})

	table := l.Load()
	if len(table.Entries) != 0 {
		t.Errorf("Load(missing) returned %d entries, want 0", len(table.Entries))
	}
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	l := New(path, fakeProber{})
	table := l.Load()
	if len(table.Entries) != 0 {
		t.Errorf("Load(corrupt) returned %d entries, want 0", len(table.Entries))
	}

	// The corrupt file is overwritten by the next save.
	table.Upsert("main", testEntry(4672, 123))
	if err := l.Save(table); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded := l.Load()
	if reloaded.Entries["main"].Port != 4672 {
		t.Errorf("reloaded entry port = %d, want 4672", reloaded.Entries["main"].Port)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nested", "ledger.json"), fakeProber{})

	table := NewTable()
	table.Upsert("feature-add-login", testEntry(4672, 4242))
	if err := l.Save(table); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := l.Load()
	entry, ok := got.Entries["feature-add-login"]
	if !ok {
		t.Fatal("entry missing after round trip")
	}
	if entry.Branch != "feature/add-login" || entry.Port != 4672 || entry.Pid != 4242 {
		t.Errorf("round-tripped entry = %+v", entry)
	}
}

func TestUpsert_SupersedesExisting(t *testing.T) {
	table := NewTable()
	table.Upsert("main", testEntry(4400, 100))
	table.Upsert("main", testEntry(4500, 200))

	if len(table.Entries) != 1 {
		t.Fatalf("table has %d entries, want 1", len(table.Entries))
	}
	if table.Entries["main"].Pid != 200 {
		t.Errorf("entry pid = %d, want 200 (second writer wins)", table.Entries["main"].Pid)
	}
}

func TestSweepStale_ReapsDeadOwners(t *testing.T) {
	dir := t.TempDir()
	reg := proxy.NewRegistry(filepath.Join(dir, "devproxy"))
	l := New(filepath.Join(dir, "ledger.json"), fakeProber{100: true})

	table := NewTable()
	table.Upsert("alive-branch", testEntry(4500, 100))
	table.Upsert("dead-branch", testEntry(4600, 999))
	if err := l.Save(table); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("alive-branch", 4500); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("dead-branch", 4600); err != nil {
		t.Fatal(err)
	}

	report, err := l.SweepStale(reg, inDefaultRange)
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}

	if len(report.RemovedEntries) != 1 || report.RemovedEntries[0] != "dead-branch" {
		t.Errorf("RemovedEntries = %v, want [dead-branch]", report.RemovedEntries)
	}

	after := l.Load()
	if _, ok := after.Entries["alive-branch"]; !ok {
		t.Error("live entry was removed")
	}
	if _, ok := after.Entries["dead-branch"]; ok {
		t.Error("dead entry survived the sweep")
	}
	if _, err := os.Stat(reg.Path("dead-branch")); !os.IsNotExist(err) {
		t.Error("dead entry's proxy registration survived the sweep")
	}
	if _, err := os.Stat(reg.Path("alive-branch")); err != nil {
		t.Error("live entry's proxy registration was removed")
	}
}

func TestSweepStale_RemovesOrphanedProxyFiles(t *testing.T) {
	dir := t.TempDir()
	reg := proxy.NewRegistry(filepath.Join(dir, "devproxy"))
	l := New(filepath.Join(dir, "ledger.json"), fakeProber{})

	// Orphan inside the range: removed. Outside the range or not a
	// port: untouched (it belongs to someone else).
	if err := reg.Register("orphan", 4747); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("other-tool", 3000); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(reg.Path("readme"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := l.SweepStale(reg, inDefaultRange)
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}

	if len(report.RemovedOrphans) != 1 || report.RemovedOrphans[0] != "orphan" {
		t.Errorf("RemovedOrphans = %v, want [orphan]", report.RemovedOrphans)
	}
	if _, err := os.Stat(reg.Path("other-tool")); err != nil {
		t.Error("out-of-range registration was removed")
	}
	if _, err := os.Stat(reg.Path("readme")); err != nil {
		t.Error("non-port file was removed")
	}
}

func TestSweepStale_Idempotent(t *testing.T) {
	dir := t.TempDir()
	reg := proxy.NewRegistry(filepath.Join(dir, "devproxy"))
	l := New(filepath.Join(dir, "ledger.json"), fakeProber{})

	table := NewTable()
	table.Upsert("dead", testEntry(4505, 999))
	if err := l.Save(table); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("dead", 4505); err != nil {
		t.Fatal(err)
	}

	first, err := l.SweepStale(reg, inDefaultRange)
	if err != nil {
		t.Fatalf("first SweepStale() error = %v", err)
	}
	if first.Total() != 1 {
		t.Errorf("first sweep removed %d, want 1", first.Total())
	}

	second, err := l.SweepStale(reg, inDefaultRange)
	if err != nil {
		t.Fatalf("second SweepStale() error = %v", err)
	}
	if second.Total() != 0 {
		t.Errorf("second sweep removed %d, want 0", second.Total())
	}
}

func TestDefaultProber_SelfIsAlive(t *testing.T) {
	var p DefaultProber
	if !p.Alive(os.Getpid()) {
		t.Error("Alive(self) = false")
	}
	if p.Alive(0) {
		t.Error("Alive(0) = true")
	}
	if p.Alive(-1) {
		t.Error("Alive(-1) = true")
	}
}
