package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// CacheSize bounds a session's rendered-text cache. The longest value
// the codec can produce renders well below this.
const CacheSize = 64

var (
	// ErrInvalidKind is returned by Open for an unknown measurement kind.
	ErrInvalidKind = errors.New("invalid measurement kind")
	// ErrClosed is returned by Read on a closed session.
	ErrClosed = errors.New("session closed")
)

// ErrInvalidSensor is returned by Open for an out-of-range sensor index.
type ErrInvalidSensor struct {
	Index int
	Count int
}

// Error implements error.
func (e *ErrInvalidSensor) Error() string {
	return fmt.Sprintf("sensor index %d out of range [0,%d)", e.Index, e.Count)
}

// Session is one consumer handle onto a single sensor measurement.
//
// A session caches the last rendered value together with the timestamp
// it was built from; the cache is stale as soon as the sensor carries a
// different timestamp. Sessions are independent: they never serialize
// on each other beyond brief contention on the shared sensor lock.
type Session struct {
	registry *Registry
	sensor   *state
	kind     Kind

	// sem is the session lock. It is sleep-capable and interruptible,
	// and is never held while waiting for fresh data.
	sem chan struct{}

	buf      [CacheSize]byte
	bufLen   int
	bufStamp int64
	off      int

	closed atomic.Bool
}

// Open creates a session for one sensor measurement. Invalid arguments
// are rejected here, never at Read.
func (r *Registry) Open(index int, kind Kind) (*Session, error) {
	if index < 0 || index >= len(r.sensors) {
		return nil, &ErrInvalidSensor{Index: index, Count: len(r.sensors)}
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if r.Codec == nil {
		return nil, errors.New("registry has no codec")
	}
	return &Session{
		registry: r,
		sensor:   &r.sensors[index],
		kind:     kind,
		sem:      make(chan struct{}, 1),
	}, nil
}

// Kind returns the measurement kind fixed at Open.
func (s *Session) Kind() Kind {
	return s.kind
}

// Close invalidates the session. A concurrent Read blocked for fresh
// data is not woken; cancel its context first.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Read delivers up to len(p) bytes of the current rendered value.
//
// At the start of a read cycle (offset 0) it refreshes the cache,
// blocking on the sensor's wake channel until a strictly newer update
// arrives. A short p drains the value across calls; reaching the end
// returns (0, nil) once and rewinds, so the next call starts a fresh
// cycle. Cancelling ctx aborts any blocking point with ctx.Err() and no
// partial state change.
func (s *Session) Read(ctx context.Context, p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if err := s.lock(ctx); err != nil {
		return 0, err
	}

	if s.off == 0 {
		for !s.refresh() {
			s.unlock()
			if err := s.waitFresh(ctx); err != nil {
				return 0, err
			}
			if err := s.lock(ctx); err != nil {
				return 0, err
			}
		}
	}

	n := len(s.buf[s.off:s.bufLen])
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		// End of data. Rewind at the cache end so the next call
		// starts a fresh refresh/blocking cycle.
		if s.off >= s.bufLen {
			s.off = 0
		}
		s.unlock()
		return 0, nil
	}
	copy(p, s.buf[s.off:s.off+n])
	s.off += n
	s.unlock()
	return n, nil
}

// refresh re-renders the cache if the sensor carries newer data.
// Called with the session lock held; takes the sensor lock briefly and
// converts outside it.
func (s *Session) refresh() bool {
	raw, stamp, _ := s.sensor.snapshot(s.kind)
	if stamp == s.bufStamp {
		return false
	}
	milli := s.registry.Codec.Convert(s.kind, raw)
	s.bufLen = len(AppendValue(s.buf[:0], milli))
	s.bufStamp = stamp
	return true
}

// waitFresh blocks until the cached timestamp is stale or ctx is done.
// The predicate and the wake channel are captured in one sensor-lock
// critical section, so an update landing between the staleness check
// and the wait cannot be lost. A wake is only a hint: the predicate is
// rechecked every round.
func (s *Session) waitFresh(ctx context.Context) error {
	for {
		_, stamp, notify := s.sensor.snapshot(s.kind)
		if stamp != s.bufStamp {
			return nil
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() {
	<-s.sem
}
