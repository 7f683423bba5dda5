package sensor

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunixtng/lunix.go/pkg/protocol"
)

// rawCodec passes raw samples through as milli-units.
var rawCodec = CodecFunc(func(kind Kind, raw uint16) int32 {
	return int32(raw)
})

// testClock is a manually advanced unix-second clock.
type testClock struct {
	sec atomic.Int64
}

func (c *testClock) now() int64 {
	return c.sec.Load()
}

func (c *testClock) tick() {
	c.sec.Add(1)
}

func newTestRegistry(count int) (*Registry, *testClock) {
	clock := &testClock{}
	clock.tick()
	r := New(count)
	r.Codec = rawCodec
	r.Clock = clock.now
	return r, clock
}

func TestRegistryApply(t *testing.T) {
	r, _ := newTestRegistry(DefaultCount)
	r.Apply(protocol.Report{NodeID: 3, Batt: 10, Temp: 20, Light: 30})

	s := &r.sensors[2]
	require.Equal(t, [KindCount]uint16{Battery: 10, Temperature: 20, Light: 30}, s.values)
	require.Equal(t, s.stamps[Battery], s.stamps[Temperature])
	require.Equal(t, s.stamps[Battery], s.stamps[Light])
	require.EqualValues(t, 1, r.Updates())
}

func TestRegistryRejectsOutOfRange(t *testing.T) {
	r, _ := newTestRegistry(16)
	for _, nodeID := range []uint16{0, 17, 1000} {
		r.Apply(protocol.Report{NodeID: nodeID, Batt: 1, Temp: 1, Light: 1})
	}

	for i := range r.sensors {
		s := &r.sensors[i]
		require.Zero(t, s.stamps[Battery], "sensor %d must be untouched", i)
		require.Equal(t, [KindCount]uint16{}, s.values, "sensor %d must be untouched", i)
	}
	require.EqualValues(t, 3, r.Rejects())
	require.Zero(t, r.Updates())
}

func TestRegistryHandleFrame(t *testing.T) {
	r, _ := newTestRegistry(4)

	foreign := &protocol.Frame{Type: 1, Payload: []byte{0x99, 1, 2, 3, 4, 5, 6, 7, 8}}
	r.HandleFrame(foreign)
	require.Zero(t, r.Updates())

	report := protocol.Report{NodeID: 1, Batt: 7, Temp: 8, Light: 9}
	r.HandleFrame(report.Frame())
	require.EqualValues(t, 1, r.Updates())
	require.Equal(t, uint16(7), r.sensors[0].values[Battery])
}

type recordedUpdate struct {
	report protocol.Report
	stamp  int64
}

type recordingObserver struct {
	updates []recordedUpdate
}

func (o *recordingObserver) SensorUpdated(report protocol.Report, timestamp int64) {
	o.updates = append(o.updates, recordedUpdate{report, timestamp})
}

func TestRegistryObserver(t *testing.T) {
	r, clock := newTestRegistry(2)
	obs := &recordingObserver{}
	r.Observer = obs

	report := protocol.Report{NodeID: 2, Batt: 1, Temp: 2, Light: 3}
	r.Apply(report)
	clock.tick()
	r.Apply(protocol.Report{NodeID: 0}) // rejected, not observed

	require.Equal(t, []recordedUpdate{{report, 1}}, obs.updates)
}

func TestRegistryTripleAtomicity(t *testing.T) {
	r, clock := newTestRegistry(1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := uint16(1); i <= 2000; i++ {
			r.Apply(protocol.Report{NodeID: 1, Batt: i, Temp: i, Light: i})
			clock.tick()
		}
	}()

	s := &r.sensors[0]
	for {
		select {
		case <-done:
			return
		default:
		}
		s.mu.Lock()
		values, stamps := s.values, s.stamps
		s.mu.Unlock()
		require.Equal(t, values[Battery], values[Temperature], "triple must come from one update")
		require.Equal(t, values[Battery], values[Light], "triple must come from one update")
		require.Equal(t, stamps[Battery], stamps[Temperature])
		require.Equal(t, stamps[Battery], stamps[Light])
	}
}
