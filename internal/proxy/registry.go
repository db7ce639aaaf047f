// Package proxy manages registration files for the local reverse-proxy
// daemon. The daemon's convention is one file per subdomain label, whose
// content is the target port in decimal. devhost only creates and
// removes these files; routing belongs to the daemon.
package proxy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Registry creates and removes proxy registration files under a
// single directory.
type Registry struct {
	dir string
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Dir returns the registration directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns the registration file path for a label.
func (r *Registry) Path(label string) string {
	return filepath.Join(r.dir, label)
}

// Register writes the registration file, routing label to port.
func (r *Registry) Register(label string, port int) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create proxy dir: %w", err)
	}
	if err := os.WriteFile(r.Path(label), []byte(strconv.Itoa(port)), 0644); err != nil {
		return fmt.Errorf("write proxy registration: %w", err)
	}

	log.Info().Str("label", label).Int("port", port).Str("file", r.Path(label)).Msg("proxy registration written")
	return nil
}

// Deregister removes the registration file for a label. Removing an
// already-absent registration is a no-op, not an error.
func (r *Registry) Deregister(label string) error {
	err := os.Remove(r.Path(label))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove proxy registration: %w", err)
	}
	return nil
}

// List returns the current registrations as label -> raw file content.
// A missing directory yields an empty map.
func (r *Registry) List() (map[string]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read proxy dir: %w", err)
	}

	regs := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		regs[e.Name()] = strings.TrimSpace(string(data))
	}
	return regs, nil
}

// ParsePort parses registration file content as a bare port number.
func ParsePort(content string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil {
		return 0, false
	}
	return port, true
}
