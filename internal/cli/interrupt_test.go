package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// syncBuffer guards notices written from the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitCancelled(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestInterrupt_FirstSignalCancels(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var notices syncBuffer
	ctx, intr := watchInterrupts(context.Background(), zap.New(core), &notices)
	intr.listen(false)

	intr.sigs <- syscall.SIGINT
	waitCancelled(t, ctx)
	intr.release()

	if intr.caughtSignal() != syscall.SIGINT {
		t.Errorf("expected SIGINT recorded, got %v", intr.caughtSignal())
	}
	if !strings.Contains(notices.String(), "cancelling rollback") {
		t.Errorf("expected a cancel notice, got %q", notices.String())
	}
	entries := logs.FilterMessage("cancelling rollback").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["signal"]; got != syscall.SIGINT.String() {
		t.Errorf("expected signal field %q, got %v", syscall.SIGINT.String(), got)
	}
}

func TestInterrupt_LaterSignalsOnlyReported(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var notices syncBuffer
	ctx, intr := watchInterrupts(context.Background(), zap.New(core), &notices)
	intr.listen(false)

	intr.sigs <- syscall.SIGTERM
	waitCancelled(t, ctx)
	intr.sigs <- syscall.SIGINT

	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage("rollback already cancelling").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("second signal was not reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
	intr.release()

	if intr.caughtSignal() != syscall.SIGTERM {
		t.Errorf("first signal should win, got %v", intr.caughtSignal())
	}
	if !strings.Contains(notices.String(), "still releasing the workspace") {
		t.Errorf("expected a waiting notice, got %q", notices.String())
	}
}

func TestInterrupt_WrapMarksCancelledRollback(t *testing.T) {
	ctx, intr := watchInterrupts(context.Background(), nil, nil)
	intr.listen(false)

	boom := errors.New("svn merge: context canceled")
	if got := intr.wrap(boom); got != boom {
		t.Errorf("wrap without a signal should be a no-op, got %v", got)
	}
	if intr.wrap(nil) != nil {
		t.Error("wrap(nil) should stay nil")
	}

	intr.sigs <- syscall.SIGINT
	waitCancelled(t, ctx)
	intr.release()

	err := intr.wrap(boom)
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, boom) {
		t.Fatalf("expected interrupted error wrapping the cause, got %v", err)
	}
	if ExitCode(err) != ExitInterrupted {
		t.Errorf("expected exit code %d, got %d", ExitInterrupted, ExitCode(err))
	}
	if intr.wrap(nil) != nil {
		t.Error("a rollback that finished cleanly stays successful")
	}
}

func TestInterrupt_ReleaseWithoutSignal(t *testing.T) {
	ctx, intr := watchInterrupts(context.Background(), nil, nil)
	intr.listen(false)
	intr.release()
	intr.release()

	if intr.caughtSignal() != nil {
		t.Errorf("expected no signal, got %v", intr.caughtSignal())
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("release should cancel the rollback context, got %v", ctx.Err())
	}
}
