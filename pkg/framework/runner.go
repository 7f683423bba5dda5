package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// Runner spawns Runnables and collects their errors.
type Runner struct {
	Context context.Context
	Runners []Runnable

	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with the given context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals cancels the runner context on CtrlC or SIGTERM.
// A second signal forces exit.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(len(r.Runners))
		}
		r.Runners = append(r.Runners, runner)
		go func(runner Runnable, name string) {
			glog.V(4).Infof("runner[%s] started", name)
			r.errCh <- runner.Run(r.Context)
			glog.V(4).Infof("runner[%s] stopped", name)
		}(runner, name)
	}
	return r
}

// Wait blocks until every Runnable stopped and aggregates errors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return errors.New("forced exit")
		case err := <-r.errCh:
			if err != context.Canceled {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn, which doesn't accept a context, calling
// onCancel when the context is canceled to unblock it.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContext is the simplified form with no cancel callback.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser runs fn and ensures closer.Close is called,
// either on cancellation (to unblock fn) or after fn exits.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
