// Package sink fans out applied measurements to external systems.
package sink

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/lunixtng/lunix.go/pkg/protocol"
	"github.com/lunixtng/lunix.go/pkg/sensor"
)

// Event is one converted measurement leaving the station.
type Event struct {
	Node      int    `json:"node"`
	Kind      string `json:"kind"`
	Raw       uint16 `json:"raw"`
	Milli     int32  `json:"milli"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// Sink delivers events to one external system.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// DefaultQueueDepth is the publisher queue depth.
const DefaultQueueDepth = 256

// Publisher decouples the producer path from sink latency: updates are
// enqueued without blocking (dropped with a counter when the queue is
// full) and delivered by Run.
type Publisher struct {
	Codec sensor.Codec
	Sinks []Sink

	events chan Event
	drops  atomic.Uint64
}

var _ sensor.Observer = (*Publisher)(nil)

// NewPublisher creates a publisher for the given sinks.
func NewPublisher(codec sensor.Codec, sinks ...Sink) *Publisher {
	return &Publisher{
		Codec:  codec,
		Sinks:  sinks,
		events: make(chan Event, DefaultQueueDepth),
	}
}

// Drops returns the number of events discarded on a full queue.
func (p *Publisher) Drops() uint64 {
	return p.drops.Load()
}

// SensorUpdated implements sensor.Observer. Never blocks.
func (p *Publisher) SensorUpdated(report protocol.Report, timestamp int64) {
	measurements := [sensor.KindCount]uint16{
		sensor.Battery:     report.Batt,
		sensor.Temperature: report.Temp,
		sensor.Light:       report.Light,
	}
	for k, raw := range measurements {
		kind := sensor.Kind(k)
		milli := p.Codec.Convert(kind, raw)
		ev := Event{
			Node:      int(report.NodeID),
			Kind:      kind.String(),
			Raw:       raw,
			Milli:     milli,
			Value:     strings.TrimSuffix(sensor.FormatValue(milli), "\n"),
			Timestamp: timestamp,
		}
		select {
		case p.events <- ev:
		default:
			p.drops.Add(1)
		}
	}
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "publisher"
}

// Run implements framework.Runnable, draining the queue into every
// sink. A failing sink is logged and skipped, never fatal.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			for _, s := range p.Sinks {
				if err := s.Publish(ctx, ev); err != nil {
					glog.Warningf("sink %T: %v", s, err)
				}
			}
		}
	}
}
