// Package framework provides run orchestration for station components.
package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is func type of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}
