package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FileName is the hand-off file created in the user's home directory.
const FileName = ".event-ai.ics"

var (
	// ErrHandoff wraps failures writing the hand-off file or running the
	// native opener.
	ErrHandoff = errors.New("calendar hand-off failed")
	// ErrUnsupportedPlatform is returned when no opener is known for the OS.
	ErrUnsupportedPlatform = errors.New("unsupported operating system")
)

// Runner executes a command and waits for it to exit.
type Runner func(ctx context.Context, name string, args ...string) error

// Handoff writes generated ICS text to a fixed path and asks the operating
// system to open it with the default calendar application.
type Handoff struct {
	logger *slog.Logger
	path   string
	goos   string
	run    Runner
	dryRun bool
	noOpen bool
}

// Option customises a Handoff.
type Option func(*Handoff)

// WithPath overrides the hand-off file path.
func WithPath(path string) Option {
	return func(h *Handoff) {
		if path != "" {
			h.path = path
		}
	}
}

// WithOS overrides the detected operating system identity.
func WithOS(goos string) Option {
	return func(h *Handoff) { h.goos = goos }
}

// WithRunner replaces the subprocess runner.
func WithRunner(run Runner) Option {
	return func(h *Handoff) { h.run = run }
}

// WithDryRun writes the file but only logs the open command.
func WithDryRun(dryRun bool) Option {
	return func(h *Handoff) { h.dryRun = dryRun }
}

// WithoutOpen makes Commit stop after writing the file.
func WithoutOpen(noOpen bool) Option {
	return func(h *Handoff) { h.noOpen = noOpen }
}

// DefaultPath returns ~/.event-ai.ics.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot locate home directory: %w", ErrHandoff, err)
	}
	return filepath.Join(home, FileName), nil
}

// New creates a Handoff. Without WithPath the file lives at DefaultPath.
func New(logger *slog.Logger, opts ...Option) (*Handoff, error) {
	h := &Handoff{
		logger: logger,
		goos:   runtime.GOOS,
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.path == "" {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		h.path = path
	}
	return h, nil
}

// Path returns the hand-off file path.
func (h *Handoff) Path() string {
	return h.path
}

// Commit writes icsText and opens it. The write happens regardless of
// platform support; only the open step depends on it.
func (h *Handoff) Commit(ctx context.Context, icsText string) error {
	if err := h.Write(icsText); err != nil {
		return err
	}
	if h.noOpen {
		h.logger.Info("Wrote hand-off file without opening it.", "path", h.path)
		return nil
	}
	return h.Open(ctx)
}

// Write overwrites the hand-off file with icsText verbatim.
func (h *Handoff) Write(icsText string) error {
	if err := os.WriteFile(h.path, []byte(icsText), 0o600); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrHandoff, h.path, err)
	}
	h.logger.Debug("Wrote hand-off file.", "path", h.path, "bytes", len(icsText))
	return nil
}

// Open runs the native "open with default application" command for the
// hand-off file and waits for the command itself to exit.
func (h *Handoff) Open(ctx context.Context) error {
	name, args, err := OpenCommand(h.goos, h.path)
	if err != nil {
		return err
	}
	if h.dryRun {
		h.logger.Info("[DRY RUN] Would open hand-off file", "command", name+" "+strings.Join(args, " "))
		return nil
	}
	h.logger.Info("Opening hand-off file with the default calendar application.", "path", h.path, "command", name)
	if err := h.run(ctx, name, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHandoff, name, err)
	}
	return nil
}

// OpenCommand returns the native opener for goos.
func OpenCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "windows":
		// start treats the first quoted argument as a window title.
		return "cmd", []string{"/c", "start", "", path}, nil
	case "darwin":
		return "open", []string{path}, nil
	case "linux":
		return "xdg-open", []string{path}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
