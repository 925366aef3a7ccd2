package handoff

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type recorder struct {
	calls []call
	err   error
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, call{name: name, args: args})
	return r.err
}

func newTestHandoff(t *testing.T, goos string, rec *recorder, opts ...Option) *Handoff {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithPath(path), WithOS(goos), WithRunner(rec.run)}, opts...)
	h, err := New(logger, opts...)
	require.NoError(t, err)
	return h
}

func TestCommit_RoundTrip(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"single":     "BEGIN:VCALENDAR...END:VCALENDAR",
		"multi-line": "BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n",
		"crlf":       "BEGIN:VCALENDAR\r\nSUMMARY:Café ☕\r\nEND:VCALENDAR\r\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			h := newTestHandoff(t, "linux", rec)

			require.NoError(t, h.Commit(context.Background(), text))

			got, err := os.ReadFile(h.Path())
			require.NoError(t, err)
			assert.Equal(t, text, string(got))
		})
	}
}

func TestCommit_OverwritesPreviousContent(t *testing.T) {
	h := newTestHandoff(t, "linux", &recorder{})
	require.NoError(t, h.Commit(context.Background(), "a much longer first payload"))
	require.NoError(t, h.Commit(context.Background(), "short"))

	got, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))
}

func TestCommit_PlatformCommands(t *testing.T) {
	cases := []struct {
		goos string
		name string
		args func(path string) []string
	}{
		{"linux", "xdg-open", func(p string) []string { return []string{p} }},
		{"darwin", "open", func(p string) []string { return []string{p} }},
		{"windows", "cmd", func(p string) []string { return []string{"/c", "start", "", p} }},
	}
	for _, tc := range cases {
		t.Run(tc.goos, func(t *testing.T) {
			rec := &recorder{}
			h := newTestHandoff(t, tc.goos, rec)

			require.NoError(t, h.Commit(context.Background(), "x"))
			require.Len(t, rec.calls, 1)
			assert.Equal(t, tc.name, rec.calls[0].name)
			assert.Equal(t, tc.args(h.Path()), rec.calls[0].args)
		})
	}
}

func TestCommit_UnsupportedPlatformStillWrites(t *testing.T) {
	rec := &recorder{}
	h := newTestHandoff(t, "plan9", rec)

	err := h.Commit(context.Background(), "BEGIN:VCALENDAR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
	assert.Contains(t, err.Error(), "plan9")
	assert.Empty(t, rec.calls)

	got, readErr := os.ReadFile(h.Path())
	require.NoError(t, readErr)
	assert.Equal(t, "BEGIN:VCALENDAR", string(got))
}

func TestCommit_OpenerFailure(t *testing.T) {
	rec := &recorder{err: errors.New("exec: \"xdg-open\": executable file not found in $PATH")}
	h := newTestHandoff(t, "linux", rec)

	err := h.Commit(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandoff))
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestCommit_WriteFailure(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := New(logger,
		WithPath(filepath.Join(t.TempDir(), "missing-dir", FileName)),
		WithOS("linux"),
		WithRunner(rec.run),
	)
	require.NoError(t, err)

	err = h.Commit(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandoff))
	assert.Empty(t, rec.calls, "open must not run when the write fails")
}

func TestCommit_DryRunSkipsOpener(t *testing.T) {
	rec := &recorder{}
	h := newTestHandoff(t, "darwin", rec, WithDryRun(true))

	require.NoError(t, h.Commit(context.Background(), "x"))
	assert.Empty(t, rec.calls)
	_, err := os.Stat(h.Path())
	assert.NoError(t, err)
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".event-ai.ics"), path)
}

func TestCommit_WithoutOpen(t *testing.T) {
	rec := &recorder{}
	h := newTestHandoff(t, "plan9", rec, WithoutOpen(true))

	require.NoError(t, h.Commit(context.Background(), "x"))
	assert.Empty(t, rec.calls)
	got, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}
