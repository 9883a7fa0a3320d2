// Package execrun runs external tools (tesseract, pdftoppm) behind an
// interface so backends can be tested with a stub.
package execrun

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a command and returns its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Exec runs commands with os/exec.
type Exec struct {
	Logger *slog.Logger
}

// Run executes name with args. A failing command returns its stderr, capped,
// inside the error.
func (e Exec) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		stderr := Truncate(errb.String(), 8<<10)
		logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", stderr)
		return out.Bytes(), errb.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr))
	}
	logger.Debug("exec ok",
		"cmd", name,
		"duration_ms", dur.Milliseconds(),
		"stdout_bytes", out.Len())
	return out.Bytes(), errb.Bytes(), nil
}

// Truncate caps s at max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Call records one invocation made through Stub.
type Call struct {
	Name string
	Args []string
}

// Stub is a Runner for tests. Fn, when set, produces the result; otherwise
// Stdout and Err are returned.
type Stub struct {
	Stdout []byte
	Err    error
	Fn     func(name string, args []string) ([]byte, error)
	Calls  []Call
}

// Run records the call and returns the canned result.
func (s *Stub) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.Calls = append(s.Calls, Call{Name: name, Args: append([]string(nil), args...)})
	if s.Fn != nil {
		out, err := s.Fn(name, args)
		return out, nil, err
	}
	return s.Stdout, nil, s.Err
}
