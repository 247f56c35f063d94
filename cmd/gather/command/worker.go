package command

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pixil98/go-gather/internal/driver"
	"github.com/pixil98/go-gather/internal/identity"
	"github.com/pixil98/go-gather/internal/messaging"
	"github.com/pixil98/go-gather/internal/metrics"
	"github.com/pixil98/go-gather/internal/protocol"
	"github.com/pixil98/go-gather/internal/realm"
	"github.com/pixil98/go-gather/internal/termination"
	"github.com/pixil98/go-service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	bus, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	hub := messaging.NewHub(bus)
	out := protocol.NewBroadcaster(hub)

	repo, repoWorker, err := cfg.Storage.buildRepository(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating repository: %w", err)
	}

	registry := realm.NewRegistry(out, cfg.Presence.registryOpts()...)
	handlerOpts := cfg.Presence.handlerOpts()

	var (
		recorder       *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder, err = metrics.New(promReg)
		if err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
		handlerOpts = append(handlerOpts, protocol.WithRecorder(recorder))
		metricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	handler := protocol.NewHandler(registry, identity.NewDirectory(), repo, out, handlerOpts...)

	var tasks []driver.Task
	if recorder != nil {
		tasks = append(tasks, metrics.NewSampler(recorder, handler))
	}
	var driverOpts []driver.DriverOpt
	if cfg.TickInterval != "" {
		d, err := time.ParseDuration(cfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing tick_interval: %w", err)
		}
		driverOpts = append(driverOpts, driver.WithTickLength(d))
	}

	workers := service.WorkerList{
		"nats":       bus,
		"listener":   cfg.Listener.buildListener(handler, hub, bus.Ready(), metricsHandler),
		"propagator": termination.NewPropagator(handler, bus),
		"driver":     driver.NewDriver(tasks, driverOpts...),
	}
	if repoWorker != nil {
		workers["storage"] = repoWorker
	}

	return workers, nil
}
