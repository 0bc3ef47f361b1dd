// Package command runs version-control command line tools.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a version-control binary in a directory and returns stdout.
type Runner interface {
	Exec(ctx context.Context, dir string, args ...string) (string, error)
	ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error)

	// Stream starts the command and returns its stdout as it is produced.
	// Close must be called; it reports the command's failure.
	Stream(ctx context.Context, dir string, args ...string) (io.ReadCloser, error)
}

// secretFlags take a value that must never be printed.
var secretFlags = map[string]bool{
	"--password": true,
}

// ExitError is returned when the command ran but failed. Stderr is kept so
// backends can classify failures (rejected pushes, unknown paths).
type ExitError struct {
	Binary string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %s failed: %v\nstderr: %s",
		e.Binary, strings.Join(redact(e.Args), " "), e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func redact(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if i > 0 && secretFlags[args[i-1]] {
			a = "***"
		}
		out[i] = a
	}
	return out
}

// OSRunner executes real commands via exec.CommandContext.
type OSRunner struct {
	// Binary is the executable name or path (e.g. "git", "svn")
	Binary string

	// Env is appended to the current process environment
	Env []string
}

var _ Runner = (*OSRunner)(nil)

// New returns an OSRunner for binary.
func New(binary string, env ...string) *OSRunner {
	return &OSRunner{Binary: binary, Env: env}
}

func (r *OSRunner) Exec(ctx context.Context, dir string, args ...string) (string, error) {
	return r.run(ctx, dir, nil, args)
}

// ExecWithStdin is Exec with stdin fed to the command. Secrets passed this
// way never appear in the argument list or in a returned error.
func (r *OSRunner) ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error) {
	return r.run(ctx, dir, strings.NewReader(stdin), args)
}

func (r *OSRunner) command(ctx context.Context, dir string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	return cmd
}

func (r *OSRunner) run(ctx context.Context, dir string, stdin io.Reader, args []string) (string, error) {
	cmd := r.command(ctx, dir, args)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), r.exitError(ctx, args, stderr.String(), err)
	}

	return stdout.String(), nil
}

func (r *OSRunner) exitError(ctx context.Context, args []string, stderr string, err error) *ExitError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &ExitError{
		Binary: r.Binary,
		Args:   append([]string(nil), args...),
		Stderr: stderr,
		Err:    err,
	}
}

// Stream starts the command with stdout connected to the returned reader.
// Closing the reader before EOF kills the command and reports no error;
// closing after EOF waits for it and returns an *ExitError on failure.
func (r *OSRunner) Stream(ctx context.Context, dir string, args ...string) (io.ReadCloser, error) {
	runCtx, cancel := context.WithCancel(ctx)
	cmd := r.command(runCtx, dir, args)

	s := &stream{runner: r, ctx: ctx, cmd: cmd, cancel: cancel, args: args}
	cmd.Stderr = &s.stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	s.out = out
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, r.exitError(ctx, args, "", err)
	}
	return s, nil
}

type stream struct {
	runner *OSRunner
	ctx    context.Context
	cmd    *exec.Cmd
	cancel context.CancelFunc
	args   []string
	out    io.Reader
	stderr bytes.Buffer
	eof    bool
	closed bool
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.out.Read(p)
	if errors.Is(err, io.EOF) {
		s.eof = true
	}
	return n, err
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.eof {
		s.cancel()
	}
	err := s.cmd.Wait()
	s.cancel()
	if err != nil && s.eof {
		return s.runner.exitError(s.ctx, s.args, s.stderr.String(), err)
	}
	return nil
}

// Stderr extracts the captured stderr from err, or err's message when the
// error did not come from a command run.
func Stderr(err error) string {
	if err == nil {
		return ""
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return err.Error()
}

// Mentions reports whether the stderr of err contains any of the needles.
func Mentions(err error, needles ...string) bool {
	out := Stderr(err)
	for _, n := range needles {
		if strings.Contains(out, n) {
			return true
		}
	}
	return false
}
