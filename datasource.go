// Package gomy is a MySQL-compatible wire-protocol client library with a
// pooled connection data source. It speaks the protocol directly
// (handshake, capability negotiation, authentication, text and binary
// result sets, prepared statements with server-side cursors) rather than
// shelling out to the C client library, and layers a connection pool
// with adaptive sizing, a creation circuit breaker, and leak detection
// on top.
package gomy

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gomy/gomy/client"
	icfg "github.com/gomy/gomy/internal/config"
	"github.com/gomy/gomy/internal/introspect"
	"github.com/gomy/gomy/internal/metrics"
	"github.com/gomy/gomy/pool"
	"github.com/gomy/gomy/protocol"
	"github.com/gomy/gomy/protocol/auth"
)

// OKResult re-exports protocol.OKPacket, the result of a non-query
// statement (affected rows, last insert id, warnings).
type OKResult = protocol.OKPacket

// SSLMode re-exports client.SSLMode so callers configuring a DataSource
// never need to import the client package directly.
type SSLMode = client.SSLMode

const (
	SSLModeNone      = client.SSLModeNone
	SSLModePreferred = client.SSLModePreferred
	SSLModeRequired  = client.SSLModeRequired
	SSLModeTrusted   = client.SSLModeTrusted
)

// BoundParameter re-exports client.BoundParameter for callers executing
// prepared statements through a DataSource-acquired connection.
type BoundParameter = client.BoundParameter

// IntrospectConfig configures the optional HTTP introspection server, a
// thin wrapper over internal/introspect so callers never import internal
// packages directly.
type IntrospectConfig struct {
	Enabled bool
	Bind    string // host:port, or host:0 for an ephemeral port
}

// DataSourceConfig is the full set of options for constructing a
// DataSource: per-connection dial and authentication settings, pool
// tuning, and the ambient stack (introspection, hot-reloadable config).
type DataSourceConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	SSLMode   SSLMode
	TLSConfig *tls.Config

	AllowPublicKeyRetrieval bool
	AuthPluginOverride      string
	PluginRegistry          *auth.Registry

	UseCursorFetch  bool
	CursorFetchSize uint32

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	ConnectAttrs    map[string]string
	MultiStatements bool

	Pool pool.Config

	Introspect *IntrospectConfig

	// ConfigReloadPath, when set, watches a YAML file for pool-tuning
	// changes (internal/config.Watcher) and logs each reloaded pool
	// section. The reloaded values are not applied to the running pool.
	// Connection fields in that file are ignored; changing host, port, or
	// credentials requires constructing a new DataSource.
	ConfigReloadPath string

	Logger *slog.Logger
}

func (c DataSourceConfig) clientConfig() client.Config {
	return client.Config{
		Host:                    c.Host,
		Port:                    c.Port,
		User:                    c.User,
		Password:                c.Password,
		Database:                c.Database,
		SSLMode:                 c.SSLMode,
		TLSConfig:               c.TLSConfig,
		AllowPublicKeyRetrieval: c.AllowPublicKeyRetrieval,
		AuthPluginOverride:      c.AuthPluginOverride,
		PluginRegistry:          c.PluginRegistry,
		UseCursorFetch:          c.UseCursorFetch,
		CursorFetchSize:         c.CursorFetchSize,
		ConnectTimeout:          c.ConnectTimeout,
		ReadTimeout:             c.ReadTimeout,
		WriteTimeout:            c.WriteTimeout,
		ConnectAttrs:            c.ConnectAttrs,
		MultiStatements:         c.MultiStatements,
	}
}

// DataSource is a pooled MySQL-compatible client: Open a DataSource once
// and call Acquire for every unit of work, or use the Query/Exec
// convenience methods which acquire and release around a single
// statement.
type DataSource struct {
	cfg    DataSourceConfig
	pool   *pool.Pool
	mx     *metrics.Collector
	logger *slog.Logger

	introspect *introspect.Server
	watcher    *icfg.Watcher
}

// Open constructs a DataSource. It does not dial eagerly; the pool's
// housekeeper opens MinConnections on its first tick.
func Open(cfg DataSourceConfig) (*DataSource, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("gomy: Host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("gomy: User is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mx := metrics.New()
	clientCfg := cfg.clientConfig()

	dial := func(ctx context.Context) (*client.Conn, error) {
		return client.Dial(ctx, clientCfg, logger)
	}

	p := pool.New(cfg.Pool, dial, mx, logger)

	ds := &DataSource{
		cfg:    cfg,
		pool:   p,
		mx:     mx,
		logger: logger,
	}

	if cfg.Introspect != nil && cfg.Introspect.Enabled {
		srv := introspect.New(cfg.Introspect.Bind, p, promhttp.HandlerFor(mx.Registry, promhttp.HandlerOpts{}), logger)
		if err := srv.Start(); err != nil {
			p.Close()
			return nil, fmt.Errorf("gomy: starting introspection server: %w", err)
		}
		ds.introspect = srv
	}

	if cfg.ConfigReloadPath != "" {
		w, err := icfg.NewWatcher(cfg.ConfigReloadPath, func(tuning icfg.PoolTuning) {
			logger.Info("gomy: pool tuning hot-reloaded", "path", cfg.ConfigReloadPath)
		})
		if err != nil {
			logger.Warn("gomy: failed to start config watcher", "path", cfg.ConfigReloadPath, "error", err)
		} else {
			ds.watcher = w
		}
	}

	return ds, nil
}

// OpenDSN parses a user:password@tcp(host:port)/dbname?ssl_mode=value
// connection string and opens a DataSource with it, leaving pool tuning
// and every other DataSourceConfig field at its zero value. Callers who
// need non-default pool tuning should populate a DataSourceConfig
// directly and call Open instead.
func OpenDSN(dsn string) (*DataSource, error) {
	cc, err := icfg.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("gomy: parsing dsn: %w", err)
	}
	cfg := DataSourceConfig{
		Host:     cc.Host,
		Port:     cc.Port,
		User:     cc.Username,
		Password: cc.Password,
		Database: cc.Database,
	}
	switch cc.SSLMode {
	case "required":
		cfg.SSLMode = SSLModeRequired
	case "trusted":
		cfg.SSLMode = SSLModeTrusted
	case "none":
		cfg.SSLMode = SSLModeNone
	default:
		cfg.SSLMode = SSLModePreferred
	}
	return Open(cfg)
}

// Acquire checks out a pooled connection, blocking in FIFO order if the
// pool is exhausted, bounded by ctx and DataSourceConfig.Pool.ConnectionTimeout.
func (ds *DataSource) Acquire(ctx context.Context) (*PooledConn, error) {
	pc, err := ds.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PooledConn{ds: ds, pc: pc}, nil
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (ds *DataSource) Stats() pool.Stats { return ds.pool.Stats() }

// MetricsHandler returns an http.Handler serving this DataSource's
// private Prometheus registry, for callers who want to mount it on
// their own mux instead of using the built-in introspection server.
func (ds *DataSource) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(ds.mx.Registry, promhttp.HandlerOpts{})
}

// Close drains the pool and stops the introspection server and config
// watcher, if running.
func (ds *DataSource) Close() error {
	if ds.watcher != nil {
		ds.watcher.Stop()
	}
	if ds.introspect != nil {
		ds.introspect.Stop()
	}
	return ds.pool.Close()
}

// PooledConn wraps a checked-out connection; callers must call Release
// exactly once, typically via defer.
type PooledConn struct {
	ds *DataSource
	pc *pool.PooledConn
}

// Conn returns the underlying client connection for issuing queries.
func (p *PooledConn) Conn() *client.Conn { return p.pc.Conn() }

// Release returns the connection to the pool.
func (p *PooledConn) Release() { p.ds.pool.Release(p.pc) }

// Remove takes the connection permanently out of service, e.g. after
// observing a fatal server error on it.
func (p *PooledConn) Remove() { p.ds.pool.Remove(p.pc) }

// Query acquires a connection, runs sql, and releases the connection
// once the returned Rows is closed or exhausted.
func (ds *DataSource) Query(ctx context.Context, sql string) (*client.Rows, error) {
	pc, err := ds.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pc.Conn().Query(sql)
	if err != nil {
		pc.Release()
		return nil, err
	}
	return rows, nil
}

// Exec acquires a connection, runs sql as a statement, and releases the
// connection before returning.
func (ds *DataSource) Exec(ctx context.Context, sql string) (*OKResult, error) {
	pc, err := ds.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer pc.Release()
	return pc.Conn().Exec(sql)
}
