// Package session wires identity resolution, label sanitization, port
// allocation, and registration into a supervised dev-server lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/northpeak-studio/devhost/internal/alloc"
	"github.com/northpeak-studio/devhost/internal/config"
	"github.com/northpeak-studio/devhost/internal/domain"
	"github.com/northpeak-studio/devhost/internal/identity"
	"github.com/northpeak-studio/devhost/internal/label"
	"github.com/northpeak-studio/devhost/internal/ledger"
	"github.com/northpeak-studio/devhost/internal/proxy"
)

// Options controls a single session run.
type Options struct {
	// PinnedPort bypasses allocation entirely when non-zero.
	PinnedPort int

	// DryRun computes and reports the label and port without side
	// effects or launching anything.
	DryRun bool

	// Command overrides the configured dev-server command. When set,
	// the child receives the port via environment only; the configured
	// default additionally gets a --port flag appended.
	Command []string
}

// Controller runs one allocation session.
type Controller struct {
	cfg       *config.Config
	resolver  *identity.Resolver
	allocator *alloc.Allocator
	ledger    *ledger.Ledger
	proxy     *proxy.Registry
	sessionID string
}

// New creates a controller from configuration with default
// collaborators.
func New(cfg *config.Config) *Controller {
	return &Controller{
		cfg:       cfg,
		resolver:  identity.NewResolver("", ""),
		allocator: alloc.New(cfg.Ports.Min, cfg.Ports.Max, cfg.Ports.ReservedSet(), nil),
		ledger:    ledger.New(cfg.Ledger.Path, nil),
		proxy:     proxy.NewRegistry(cfg.Proxy.Dir),
		sessionID: uuid.New().String(),
	}
}

// Run resolves, allocates, registers, and supervises the dev server.
// It returns the child's exit code unchanged, or 0 for dry runs and
// signal-driven shutdown.
func (c *Controller) Run(ctx context.Context, opts Options) (int, error) {
	id, err := c.resolver.Resolve(ctx)
	if err != nil {
		return 1, fmt.Errorf("resolve identity: %w", err)
	}
	log.Info().
		Str("session", c.sessionID).
		Str("identity", id.Name).
		Str("method", id.Method).
		Msg("identity resolved")

	lbl := label.Sanitize(id.Name)
	log.Info().Str("session", c.sessionID).Str("label", lbl).Msg("label chosen")

	port := opts.PinnedPort
	if port == 0 {
		port, err = c.allocator.Allocate(id.Name)
		if err != nil {
			return 1, err
		}
	}
	log.Info().Str("session", c.sessionID).Int("port", port).Msg("port chosen")

	if opts.DryRun {
		fmt.Printf("identity: %s (%s)\n", id.Name, id.Method)
		fmt.Printf("label:    %s\n", lbl)
		fmt.Printf("port:     %d\n", port)
		fmt.Printf("url:      http://%s.localhost:%d\n", lbl, port)
		return 0, nil
	}

	if err := c.register(id.Name, lbl, port); err != nil {
		return 1, err
	}

	// One release path for every way out: normal child exit, error,
	// or signal. sync.Once keeps repeated invocations harmless.
	var once sync.Once
	release := func() {
		once.Do(func() { c.deregister(lbl) })
	}
	defer release()

	return c.supervise(ctx, lbl, port, opts, release)
}

// register writes the proxy registration and this session's ledger
// entry.
func (c *Controller) register(branch, lbl string, port int) error {
	if err := c.proxy.Register(lbl, port); err != nil {
		return err
	}

	cwd, _ := os.Getwd()
	table := c.ledger.Load()
	table.Upsert(lbl, ledger.NewEntry(branch, port, os.Getpid(), cwd))
	if err := c.ledger.Save(table); err != nil {
		return err
	}

	log.Info().
		Str("session", c.sessionID).
		Str("label", lbl).
		Int("port", port).
		Msg("registration written")
	return nil
}

// deregister removes the proxy registration and the ledger entry.
// Best effort: failures are logged, never raised - this runs on the
// way out.
func (c *Controller) deregister(lbl string) {
	if err := c.proxy.Deregister(lbl); err != nil {
		log.Warn().Str("label", lbl).Err(err).Msg("failed to remove proxy registration")
	}

	table := c.ledger.Load()
	table.Remove(lbl)
	if err := c.ledger.Save(table); err != nil {
		log.Warn().Str("label", lbl).Err(err).Msg("failed to update ledger")
	}

	log.Info().Str("session", c.sessionID).Str("label", lbl).Msg("registration removed")
}

// supervise launches the dev-server child and blocks until it exits or
// a shutdown signal arrives. Signals are forwarded to the child; the
// release guard runs before return on every path.
func (c *Controller) supervise(ctx context.Context, lbl string, port int, opts Options, release func()) (int, error) {
	cmd, err := c.buildCommand(ctx, lbl, port, opts)
	if err != nil {
		return 1, err
	}

	log.Info().
		Str("session", c.sessionID).
		Str("command", cmd.Path).
		Strs("args", cmd.Args[1:]).
		Msg("starting dev server")

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("start dev server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn().Err(err).Msg("failed to forward signal to dev server")
		}
		<-done
		release()
		return 0, nil

	case err := <-done:
		release()
		return exitCode(err), nil
	}
}

// buildCommand assembles the child process with the allocated port
// injected through the environment (and --port for the configured
// default command).
func (c *Controller) buildCommand(ctx context.Context, lbl string, port int, opts Options) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	if len(opts.Command) > 0 {
		cmd = exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	} else {
		if c.cfg.Server.Command == "" {
			return nil, domain.ErrNoCommand
		}
		args := append([]string{}, c.cfg.Server.Args...)
		args = append(args, "--", "--port", fmt.Sprintf("%d", port))
		cmd = exec.CommandContext(ctx, c.cfg.Server.Command, args...)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PORT=%d", port),
		fmt.Sprintf("DEVHOST_PORT=%d", port),
		fmt.Sprintf("DEVHOST_SUBDOMAIN=%s", lbl),
	)
	return cmd, nil
}

// exitCode extracts the child's exit code; a nil error is 0 and a
// non-exit error maps to 1. A child killed by a signal we did not
// forward reports -1, which would wrap to 255 through os.Exit, so
// negative codes clamp to 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}
