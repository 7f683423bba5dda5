// Package monitor exposes station metrics over HTTP.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunixtng/lunix.go/pkg/protocol"
	"github.com/lunixtng/lunix.go/pkg/sensor"
	"github.com/lunixtng/lunix.go/pkg/sink"
	"github.com/lunixtng/lunix.go/pkg/source"
)

// Counters maintained by the serving path.
var (
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lunix_frames_total",
		Help: "Frames assembled from the byte stream.",
	})
	SessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lunix_sessions_open",
		Help: "Consumer sessions currently open.",
	})
	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lunix_sessions_total",
		Help: "Consumer sessions opened since start.",
	})
	BytesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lunix_bytes_out_total",
		Help: "Measurement bytes delivered to consumers.",
	})
)

// Monitor serves /metrics and /health.
type Monitor struct {
	Addr string

	registry *prometheus.Registry
}

// New creates a monitor on addr with the serving-path counters
// registered.
func New(addr string) *Monitor {
	m := &Monitor{Addr: addr, registry: prometheus.NewRegistry()}
	m.registry.MustRegister(FramesTotal, SessionsOpen, SessionsTotal, BytesOut)
	return m
}

// ObserveRegistry exports the registry's update and reject counts.
func (m *Monitor) ObserveRegistry(r *sensor.Registry) *Monitor {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "lunix_updates_total",
			Help: "Sensor reports applied.",
		}, func() float64 { return float64(r.Updates()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "lunix_rejects_total",
			Help: "Sensor reports dropped for an out-of-range node id.",
		}, func() float64 { return float64(r.Rejects()) }),
	)
	return m
}

// ObservePump exports the byte-stream intake count.
func (m *Monitor) ObservePump(p *source.Pump) *Monitor {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lunix_bytes_in_total",
		Help: "Bytes fed to the frame parser.",
	}, func() float64 { return float64(p.BytesIn()) }))
	return m
}

// ObservePublisher exports the sink queue drop count.
func (m *Monitor) ObservePublisher(p *sink.Publisher) *Monitor {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lunix_sink_drops_total",
		Help: "Events dropped on a full sink queue.",
	}, func() float64 { return float64(p.Drops()) }))
	return m
}

// CountFrames wraps a frame handler with the frame counter.
func CountFrames(next protocol.FrameHandler) protocol.FrameHandler {
	return protocol.HandleFrameFunc(func(f *protocol.Frame) {
		FramesTotal.Inc()
		next.HandleFrame(f)
	})
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return "monitor"
}

// Run implements framework.Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: m.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return context.Canceled
	}
	return err
}
