// Package config loads the distributor process's configuration from
// command-line flags and environment variables, in the flag-then-env
// override style the teacher uses for its signaling server.
package config

import (
	"flag"
	"os"
	"strings"
)

// Config is the configuration surface listed in SPEC_FULL.md §6:
// registration secret, bus transport, Session Map backend, HTTP address,
// and tracing sink selection. Everything else (request payload parsing,
// the remote-node client) is delegated to the surrounding shell.
type Config struct {
	HTTPAddr string

	LogLevel string

	RegistrationSecret string

	// BusTransport selects the gridbus implementation: "local" or "nats".
	BusTransport string
	NATSURL      string
	NATSStream   string

	// SessionBackend selects the sessionmap implementation: "memory" or "sql".
	SessionBackend string
	SQLDriver      string
	SessionDSN     string

	// TracingSink selects the tracing.Tracer implementation: "noop" or "otel".
	TracingSink string
}

// Load parses flags, then applies environment variable overrides.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:       ":4444",
		LogLevel:       "info",
		BusTransport:   "local",
		NATSURL:        "nats://localhost:4222",
		NATSStream:     "GRID_EVENTS",
		SessionBackend: "memory",
		SQLDriver:      "sqlite3",
		SessionDSN:     "distgrid.db",
		TracingSink:    "noop",
	}

	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "distributor HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.RegistrationSecret, "registration-secret", "", "shared secret nodes must present in NODE_STATUS")
	flag.StringVar(&cfg.BusTransport, "bus", cfg.BusTransport, "event bus transport (local, nats)")
	flag.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server URL")
	flag.StringVar(&cfg.NATSStream, "nats-stream", cfg.NATSStream, "NATS JetStream stream name")
	flag.StringVar(&cfg.SessionBackend, "session-backend", cfg.SessionBackend, "session map backend (memory, sql)")
	flag.StringVar(&cfg.SQLDriver, "sql-driver", cfg.SQLDriver, "database/sql driver name for the relational session map")
	flag.StringVar(&cfg.SessionDSN, "session-dsn", cfg.SessionDSN, "data source name for the relational session map")
	flag.StringVar(&cfg.TracingSink, "tracing", cfg.TracingSink, "tracing sink (noop, otel)")

	flag.Parse()

	if v := os.Getenv("GRID_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("GRID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GRID_REG_SECRET"); v != "" {
		cfg.RegistrationSecret = v
	}
	if v := os.Getenv("GRID_BUS_TRANSPORT"); v != "" {
		cfg.BusTransport = strings.ToLower(v)
	}
	if v := os.Getenv("GRID_NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("GRID_NATS_STREAM"); v != "" {
		cfg.NATSStream = v
	}
	if v := os.Getenv("GRID_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = strings.ToLower(v)
	}
	if v := os.Getenv("GRID_SQL_DRIVER"); v != "" {
		cfg.SQLDriver = v
	}
	if v := os.Getenv("GRID_SESSION_DSN"); v != "" {
		cfg.SessionDSN = v
	}
	if v := os.Getenv("GRID_TRACING_SINK"); v != "" {
		cfg.TracingSink = strings.ToLower(v)
	}

	return cfg
}
