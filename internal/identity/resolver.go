// Package identity resolves a stable name for the current development
// session, usually the checked-out git branch.
package identity

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// gitTimeout bounds each git query; a hung git must not hang allocation.
const gitTimeout = 5 * time.Second

// Identity names the current development session. Method records which
// resolution step produced it and is diagnostic only.
type Identity struct {
	Name   string
	Method string
}

// Resolver determines the session identity for a working tree.
type Resolver struct {
	dir     string
	command string
}

// NewResolver creates a resolver rooted at dir. An empty command
// defaults to "git".
func NewResolver(dir, command string) *Resolver {
	if command == "" {
		command = "git"
	}
	return &Resolver{
		dir:     dir,
		command: command,
	}
}

// Resolve produces a non-empty identity for the session. Resolution
// methods are tried in order; each failure falls through to the next,
// so the only way Resolve errors is the directory fallback failing too.
func (r *Resolver) Resolve(ctx context.Context) (Identity, error) {
	// Current branch, worktree-aware.
	if branch, err := r.git(ctx, "branch", "--show-current"); err == nil && branch != "" {
		return Identity{Name: branch, Method: "branch"}, nil
	}

	// Symbolic ref; resolves to the literal "HEAD" when detached.
	if ref, err := r.git(ctx, "symbolic-ref", "--short", "-q", "HEAD"); err == nil && ref != "" && ref != "HEAD" {
		return Identity{Name: ref, Method: "symbolic-ref"}, nil
	}

	// Detached head: synthesize from the short commit hash.
	if hash, err := r.git(ctx, "rev-parse", "--short", "HEAD"); err == nil && hash != "" {
		return Identity{Name: "detached-" + hash, Method: "detached"}, nil
	}

	// Last resort: the containing directory's base name.
	dir := r.dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Identity{}, err
		}
		dir = cwd
	}

	log.Debug().Str("dir", dir).Msg("no git metadata, falling back to directory name")
	return Identity{Name: filepath.Base(dir), Method: "directory"}, nil
}

// git runs a single git query and returns its trimmed stdout.
func (r *Resolver) git(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, args...)
	if r.dir != "" {
		cmd.Dir = r.dir
	}

	output, err := cmd.Output()
	if err != nil {
		log.Trace().Strs("args", args).Err(err).Msg("git query failed")
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
