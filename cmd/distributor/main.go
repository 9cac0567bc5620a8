package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/distgrid/internal/api"
	"github.com/sebas/distgrid/internal/banner"
	"github.com/sebas/distgrid/internal/config"
	"github.com/sebas/distgrid/internal/distributor"
	"github.com/sebas/distgrid/internal/gridbus"
	"github.com/sebas/distgrid/internal/health"
	"github.com/sebas/distgrid/internal/logging"
	"github.com/sebas/distgrid/internal/sessionmap"
	"github.com/sebas/distgrid/internal/tracing"
)

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout)
	logging.SetLevel(cfg.LogLevel)

	bus, err := buildBus(cfg)
	if err != nil {
		slog.Error("failed to build event bus", "error", err)
		os.Exit(1)
	}

	sessions, err := buildSessionMap(cfg, bus)
	if err != nil {
		slog.Error("failed to build session map", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	tracer := buildTracer(cfg)
	checker := health.New()

	dist := distributor.New(distributor.Config{
		RegistrationSecret: cfg.RegistrationSecret,
		Bus:                bus,
		Sessions:           sessions,
		Health:             checker,
		Tracer:             tracer,
	})
	defer dist.Close()

	server := api.NewServer(cfg.HTTPAddr, dist)

	banner.Print("distgrid distributor", []banner.ConfigLine{
		{Label: "http addr", Value: cfg.HTTPAddr},
		{Label: "bus", Value: cfg.BusTransport},
		{Label: "session backend", Value: cfg.SessionBackend},
		{Label: "tracing", Value: cfg.TracingSink},
	})

	run(server, bus, sessions)
}

func buildBus(cfg *config.Config) (gridbus.Bus, error) {
	switch cfg.BusTransport {
	case "nats":
		natsCfg := gridbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.StreamName = cfg.NATSStream
		return gridbus.NewNATS(context.Background(), natsCfg)
	default:
		return gridbus.NewLocal(), nil
	}
}

func buildSessionMap(cfg *config.Config, bus gridbus.Bus) (sessionmap.Map, error) {
	switch cfg.SessionBackend {
	case "sql":
		return sessionmap.OpenSQL(cfg.SQLDriver, cfg.SessionDSN)
	default:
		return sessionmap.NewMemory(bus), nil
	}
}

func buildTracer(cfg *config.Config) tracing.Tracer {
	if cfg.TracingSink == "otel" {
		return tracing.OTel("github.com/sebas/distgrid")
	}
	return tracing.Noop()
}

func run(server *api.Server, bus gridbus.Bus, sessions sessionmap.Map) {
	if err := server.Start(); err != nil {
		slog.Error("api server failed to start", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)

	_ = server.Stop()
	_ = bus.Close()

	time.Sleep(200 * time.Millisecond)
}
