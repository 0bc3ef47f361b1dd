package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/RevCBH/trunkback/internal/command"
)

// StubRunner is a command.Runner that replays canned responses keyed on the
// space-joined argument list. Unexpected calls fail.
type StubRunner struct {
	mu       sync.Mutex
	stubs    map[string][]stubResponse
	defaults map[string]stubResponse
	calls    []Call
	hooks    map[string]func(dir string)
}

// Call records one invocation.
type Call struct {
	Dir   string
	Args  string
	Stdin string
}

type stubResponse struct {
	out string
	err error
}

var _ command.Runner = (*StubRunner)(nil)

func NewStubRunner() *StubRunner {
	return &StubRunner{
		stubs:    make(map[string][]stubResponse),
		defaults: make(map[string]stubResponse),
		hooks:    make(map[string]func(dir string)),
	}
}

// Stub queues a single response for args.
func (s *StubRunner) Stub(args string, out string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[args] = append(s.stubs[args], stubResponse{out: out, err: err})
}

// StubDefault sets the response used once the queue for args is empty.
func (s *StubRunner) StubDefault(args string, out string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[args] = stubResponse{out: out, err: err}
}

// OnCall runs fn with the working directory whenever args is executed,
// before the response is returned. Used to emulate filesystem side effects.
func (s *StubRunner) OnCall(args string, fn func(dir string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[args] = fn
}

func (s *StubRunner) Exec(ctx context.Context, dir string, args ...string) (string, error) {
	return s.exec(ctx, Call{Dir: dir, Args: strings.Join(args, " ")})
}

// ExecWithStdin records stdin on the call and replays the stub for args.
func (s *StubRunner) ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error) {
	return s.exec(ctx, Call{Dir: dir, Args: strings.Join(args, " "), Stdin: stdin})
}

// Stream replays the stub for args as a reader. A stubbed error is returned
// from Close, after the output has been read.
func (s *StubRunner) Stream(ctx context.Context, dir string, args ...string) (io.ReadCloser, error) {
	out, err := s.exec(ctx, Call{Dir: dir, Args: strings.Join(args, " ")})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return &stubStream{Reader: strings.NewReader(out), err: err}, nil
}

type stubStream struct {
	*strings.Reader
	err error
}

func (s *stubStream) Close() error {
	return s.err
}

func (s *StubRunner) exec(ctx context.Context, call Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := call.Args
	s.mu.Lock()
	s.calls = append(s.calls, call)
	hook := s.hooks[key]
	var resp stubResponse
	queue := s.stubs[key]
	switch {
	case len(queue) > 0:
		resp = queue[0]
		s.stubs[key] = queue[1:]
	default:
		d, ok := s.defaults[key]
		if !ok {
			s.mu.Unlock()
			return "", fmt.Errorf("unexpected call: %s", key)
		}
		resp = d
	}
	s.mu.Unlock()

	if hook != nil {
		hook(call.Dir)
	}
	return resp.out, resp.err
}

// CallsFor counts the invocations matching args exactly.
func (s *StubRunner) CallsFor(args ...string) int {
	key := strings.Join(args, " ")
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call.Args == key {
			count++
		}
	}
	return count
}

// Calls returns a copy of every recorded call in order.
func (s *StubRunner) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
