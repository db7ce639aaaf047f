package proxy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterAndDeregister(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "devproxy")
	r := NewRegistry(dir)

	if err := r.Register("feature-add-login", 4672); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "feature-add-login"))
	if err != nil {
		t.Fatalf("reading registration file: %v", err)
	}
	if string(data) != "4672" {
		t.Errorf("registration content = %q, want %q", data, "4672")
	}

	if err := r.Deregister("feature-add-login"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "feature-add-login")); !os.IsNotExist(err) {
		t.Error("registration file still exists after Deregister")
	}
}

func TestDeregister_MissingIsNoop(t *testing.T) {
	r := NewRegistry(t.TempDir())

	if err := r.Deregister("never-registered"); err != nil {
		t.Errorf("Deregister(missing) error = %v, want nil", err)
	}
	// A second removal is equally fine.
	if err := r.Deregister("never-registered"); err != nil {
		t.Errorf("Deregister(missing) second call error = %v, want nil", err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	if err := r.Register("main", 4400); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("develop", 4511); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// Something that is not a registration.
	if err := os.WriteFile(filepath.Join(dir, "notes"), []byte("not a port"), 0644); err != nil {
		t.Fatal(err)
	}

	regs, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(regs) != 3 {
		t.Errorf("List() returned %d entries, want 3", len(regs))
	}
	if regs["main"] != "4400" {
		t.Errorf("List()[main] = %q, want %q", regs["main"], "4400")
	}
}

func TestList_MissingDirIsEmpty(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))

	regs, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(regs) != 0 {
		t.Errorf("List() returned %d entries, want 0", len(regs))
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		content string
		want    int
		ok      bool
	}{
		{"4672", 4672, true},
		{" 4672\n", 4672, true},
		{"not a port", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePort(tt.content)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePort(%q) = (%d, %t), want (%d, %t)", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}
