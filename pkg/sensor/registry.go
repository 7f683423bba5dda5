package sensor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/lunixtng/lunix.go/pkg/protocol"
)

// DefaultCount is the sensor count of a stock Lunix deployment.
const DefaultCount = 16

// Observer is notified after an update became visible to readers.
// Called outside the sensor lock on the producer path; must not block.
type Observer interface {
	SensorUpdated(report protocol.Report, timestamp int64)
}

// state is the measurement store of one sensor slot.
//
// values and stamps are indexed by Kind. stamps are stamped equal on
// every update, so a reader never pairs values from different updates.
type state struct {
	mu     sync.Mutex
	values [KindCount]uint16
	stamps [KindCount]int64
	notify chan struct{}
}

// snapshot reads one measurement and the wait channel atomically.
func (s *state) snapshot(kind Kind) (raw uint16, stamp int64, notify <-chan struct{}) {
	s.mu.Lock()
	raw, stamp, notify = s.values[kind], s.stamps[kind], s.notify
	s.mu.Unlock()
	return
}

// Registry holds the fixed sensor array of one station.
type Registry struct {
	// Codec converts raw samples for session rendering. Required
	// before Open is called.
	Codec Codec
	// Clock returns the current time in unix seconds.
	// Defaults to the wall clock.
	Clock func() int64
	// Observer, if set, is told about every applied update.
	Observer Observer

	sensors []state

	updates atomic.Uint64
	rejects atomic.Uint64
}

// New creates a registry with count sensor slots.
// A non-positive count selects DefaultCount.
func New(count int) *Registry {
	if count <= 0 {
		count = DefaultCount
	}
	r := &Registry{sensors: make([]state, count)}
	for i := range r.sensors {
		r.sensors[i].notify = make(chan struct{})
	}
	return r
}

// Count returns the number of sensor slots.
func (r *Registry) Count() int {
	return len(r.sensors)
}

// Updates returns the number of applied reports.
func (r *Registry) Updates() uint64 {
	return r.updates.Load()
}

// Rejects returns the number of reports dropped for an out-of-range
// node id.
func (r *Registry) Rejects() uint64 {
	return r.rejects.Load()
}

// HandleFrame implements protocol.FrameHandler. Frames not carrying a
// sensor report are dropped silently.
func (r *Registry) HandleFrame(f *protocol.Frame) {
	report, ok := f.SensorReport()
	if !ok {
		if glog.V(3) {
			glog.Infof("ignore frame type=%#x am=%#x len=%d", f.Type, f.AMType, len(f.Payload))
		}
		return
	}
	r.Apply(report)
}

// Apply stores a report. Node ids outside [1, Count] are dropped with a
// diagnostic only; nothing is surfaced to consumers.
func (r *Registry) Apply(report protocol.Report) {
	if report.NodeID < 1 || int(report.NodeID) > len(r.sensors) {
		r.rejects.Add(1)
		glog.V(1).Infof("drop report from node %d: want [1,%d]", report.NodeID, len(r.sensors))
		return
	}
	now := r.now()
	s := &r.sensors[report.NodeID-1]

	s.mu.Lock()
	s.values = [KindCount]uint16{Battery: report.Batt, Temperature: report.Temp, Light: report.Light}
	for i := range s.stamps {
		s.stamps[i] = now
	}
	waiters := s.notify
	s.notify = make(chan struct{})
	s.mu.Unlock()

	// Wake strictly after the new triple is visible.
	close(waiters)
	r.updates.Add(1)

	if o := r.Observer; o != nil {
		o.SensorUpdated(report, now)
	}
}

func (r *Registry) now() int64 {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().Unix()
}
