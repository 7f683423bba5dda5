package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/lunixtng/lunix.go/pkg/config"
	"github.com/lunixtng/lunix.go/pkg/convert"
	fx "github.com/lunixtng/lunix.go/pkg/framework"
	"github.com/lunixtng/lunix.go/pkg/monitor"
	"github.com/lunixtng/lunix.go/pkg/protocol"
	"github.com/lunixtng/lunix.go/pkg/sensor"
	"github.com/lunixtng/lunix.go/pkg/server"
	"github.com/lunixtng/lunix.go/pkg/sink"
	"github.com/lunixtng/lunix.go/pkg/source"
)

var (
	// Version is set at build time.
	Version = "dev"

	configFile  = "/etc/lunix/lunixd.yaml"
	showVersion bool
)

func init() {
	if val := os.Getenv("LUNIXD_CONFIG"); val != "" {
		configFile = val
	}
	flag.StringVar(&configFile, "config", configFile, "Configuration file path.")
	flag.BoolVar(&showVersion, "version", showVersion, "Print version and exit.")
}

func main() {
	flag.Parse()
	if showVersion {
		fmt.Printf("lunixd %s\n", Version)
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			glog.Exitf("load config: %v", err)
		}
		glog.Warningf("config %s not found, using defaults", configFile)
		cfg = config.Default()
	}

	registry := sensor.New(cfg.Station.SensorCount)
	registry.Codec = convert.New()

	stream, err := source.Attach(cfg.Source.Transport, cfg.Source.Addr)
	if err != nil {
		glog.Exitf("attach %s %s: %v", cfg.Source.Transport, cfg.Source.Addr, err)
	}
	parser := &protocol.Parser{Handler: monitor.CountFrames(registry)}
	pump := source.NewPump(stream, parser)
	pump.ChunkSize = cfg.Source.ChunkSize

	runner := fx.NewRunner().HandleSignals()
	runner.Go(pump, server.New(cfg.Serve.Addr, registry))

	var publisher *sink.Publisher
	if sinks := buildSinks(runner.Context, cfg); len(sinks) > 0 {
		publisher = sink.NewPublisher(registry.Codec, sinks...)
		registry.Observer = publisher
		runner.Go(publisher)
		defer closeSinks(sinks)
	}

	if cfg.Monitor.Enabled {
		mon := monitor.New(cfg.Monitor.Addr).ObserveRegistry(registry).ObservePump(pump)
		if publisher != nil {
			mon.ObservePublisher(publisher)
		}
		runner.Go(mon)
	}

	glog.Infof("lunixd %s: %d sensors, source %s %s",
		Version, cfg.Station.SensorCount, cfg.Source.Transport, cfg.Source.Addr)
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}

func buildSinks(ctx context.Context, cfg *config.Config) []sink.Sink {
	var sinks []sink.Sink
	if cfg.MQTT.URL != "" {
		s, err := sink.NewMQTTSink(cfg.MQTT.URL)
		if err != nil {
			glog.Exitf("mqtt sink: %v", err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Redis.Addr != "" {
		s, err := sink.NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			glog.Exitf("redis sink: %v", err)
		}
		sinks = append(sinks, s)
	}
	return sinks
}

func closeSinks(sinks []sink.Sink) {
	for _, s := range sinks {
		if closer, ok := s.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}
