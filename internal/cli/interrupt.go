package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// ErrInterrupted marks a rollback cancelled by SIGINT or SIGTERM.
var ErrInterrupted = errors.New("rollback interrupted")

// interrupt cancels a running rollback on the first SIGINT or SIGTERM. The
// strategy unwinds through its workspace release on cancellation; later
// signals are reported and otherwise ignored.
type interrupt struct {
	sigs   chan os.Signal
	cancel context.CancelFunc
	logger *zap.Logger
	notice io.Writer

	mu     sync.Mutex
	caught os.Signal

	stop chan struct{}
	done chan struct{}
}

// watchInterrupts returns a context cancelled by the first signal. Call
// listen to start watching and release once the rollback returns.
func watchInterrupts(parent context.Context, logger *zap.Logger, notice io.Writer) (context.Context, *interrupt) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notice == nil {
		notice = io.Discard
	}
	ctx, cancel := context.WithCancel(parent)
	return ctx, &interrupt{
		sigs:   make(chan os.Signal, 2),
		cancel: cancel,
		logger: logger,
		notice: notice,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// listen starts watching. notify registers with the OS; tests pass false and
// feed sigs directly.
func (i *interrupt) listen(notify bool) {
	if notify {
		signal.Notify(i.sigs, syscall.SIGINT, syscall.SIGTERM)
	}
	go i.loop()
}

func (i *interrupt) loop() {
	defer close(i.done)
	for {
		select {
		case sig := <-i.sigs:
			i.handle(sig)
		case <-i.stop:
			return
		}
	}
}

func (i *interrupt) handle(sig os.Signal) {
	i.mu.Lock()
	first := i.caught == nil
	if first {
		i.caught = sig
	}
	i.mu.Unlock()

	if !first {
		i.logger.Warn("rollback already cancelling", zap.String("signal", sig.String()))
		fmt.Fprintln(i.notice, "still releasing the workspace, waiting for the rollback to stop")
		return
	}
	i.logger.Warn("cancelling rollback", zap.String("signal", sig.String()))
	fmt.Fprintf(i.notice, "\n%s: cancelling rollback\n", sig)
	i.cancel()
}

// caughtSignal returns the signal that cancelled the rollback, or nil.
func (i *interrupt) caughtSignal() os.Signal {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.caught
}

// wrap marks err as ErrInterrupted when a signal cancelled the rollback.
func (i *interrupt) wrap(err error) error {
	sig := i.caughtSignal()
	if err == nil || sig == nil {
		return err
	}
	return fmt.Errorf("%w by %s: %w", ErrInterrupted, sig, err)
}

// release stops watching and waits for the watcher to exit.
func (i *interrupt) release() {
	signal.Stop(i.sigs)
	select {
	case <-i.stop:
	default:
		close(i.stop)
	}
	<-i.done
	i.cancel()
}
