// Command gomy is a small operational CLI around a gomy DataSource: it
// loads a YAML config file, opens a pooled data source, optionally
// serves the introspection endpoints, and runs until signaled.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gomy/gomy"
	icfg "github.com/gomy/gomy/internal/config"
	"github.com/gomy/gomy/pool"
)

func main() {
	configPath := flag.String("config", "configs/gomy.yaml", "path to configuration file")
	query := flag.String("query", "SELECT 1", "a statement to run once at startup as a smoke test")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info("gomy starting", "config", *configPath)

	f, err := icfg.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "connection", f.Redacted().Connection)

	ds, err := gomy.Open(gomy.DataSourceConfig{
		Host:     f.Connection.Host,
		Port:     f.Connection.Port,
		User:     f.Connection.Username,
		Password: f.Connection.Password,
		Database: f.Connection.Database,
		Pool:     poolConfigFromTuning(f.Pool),
		Introspect: &gomy.IntrospectConfig{
			Enabled: f.Introspect.Enabled,
			Bind:    f.Introspect.Bind,
		},
		ConfigReloadPath: *configPath,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to open data source", "error", err)
		os.Exit(1)
	}

	if *query != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := ds.Exec(ctx, *query); err != nil {
			logger.Warn("startup smoke-test query failed", "query", *query, "error", err)
		}
		cancel()
	}

	logger.Info("gomy ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	if err := ds.Close(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("gomy stopped")
}

func poolConfigFromTuning(t icfg.PoolTuning) pool.Config {
	return pool.Config{
		MinConnections:         t.MinConnections,
		MaxConnections:         t.MaxConnections,
		IdleTimeout:            t.IdleTimeout,
		MaxLifetime:            t.MaxLifetime,
		KeepaliveTime:          t.KeepaliveTime,
		AdaptiveSizing:         t.AdaptiveSizing,
		LeakDetectionThreshold: t.LeakDetectionThreshold,
	}
}
