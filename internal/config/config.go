// Package config loads a gomy data source's YAML configuration file and
// watches it for hot-reloadable pool-tuning changes.
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a gomy data source's configuration.
type File struct {
	Connection ConnectionConfig `yaml:"connection"`
	Pool       PoolTuning       `yaml:"pool"`
	Introspect IntrospectConfig `yaml:"introspect"`
}

// ConnectionConfig holds the fields that require a fresh DataSource to
// change — credentials, host, and TLS posture are never hot-reloaded.
type ConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// PoolTuning is the hot-reloadable subset of pool.Config: sizing,
// timeouts, and feature toggles, but never credentials or addresses.
type PoolTuning struct {
	MinConnections int           `yaml:"min_connections"`
	MaxConnections int           `yaml:"max_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	KeepaliveTime  time.Duration `yaml:"keepalive_time"`

	AdaptiveSizing         bool          `yaml:"adaptive_sizing"`
	LeakDetectionThreshold time.Duration `yaml:"leak_detection_threshold"`
}

// IntrospectConfig configures the optional gorilla/mux HTTP server
// exposing /healthz, /stats, and /metrics.
type IntrospectConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
}

// Redacted returns a copy of f with the password masked, for safe logging.
func (f File) Redacted() File {
	c := f
	if c.Connection.Password != "" {
		c.Connection.Password = "***REDACTED***"
	}
	return c
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values, leaving unmatched references untouched so a typo is
// visible in the resulting YAML rather than silently blanked.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(f); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(f)
	return f, nil
}

func applyDefaults(f *File) {
	if f.Connection.Port == 0 {
		f.Connection.Port = 3306
	}
	if f.Connection.SSLMode == "" {
		f.Connection.SSLMode = "preferred"
	}
	if f.Pool.MaxConnections == 0 {
		f.Pool.MaxConnections = 10
	}
	if f.Introspect.Bind == "" {
		f.Introspect.Bind = "127.0.0.1:0"
	}
}

func validate(f *File) error {
	if f.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if f.Connection.Username == "" {
		return fmt.Errorf("connection.username is required")
	}
	if f.Pool.MinConnections < 0 {
		return fmt.Errorf("pool.min_connections must not be negative")
	}
	if f.Pool.MaxConnections > 0 && f.Pool.MinConnections > f.Pool.MaxConnections {
		return fmt.Errorf("pool.min_connections (%d) exceeds pool.max_connections (%d)", f.Pool.MinConnections, f.Pool.MaxConnections)
	}
	return nil
}

// ParseDSN parses a user:password@tcp(host:port)/dbname?ssl_mode=value
// connection string into a ConnectionConfig, the same shape callers who
// prefer a single connection string over a YAML file can feed into
// DataSourceConfig. ssl_mode is the only recognized query parameter;
// anything else is ignored rather than rejected, so a DSN copied from a
// driver that accepts more parameters still parses.
func ParseDSN(dsn string) (ConnectionConfig, error) {
	var cc ConnectionConfig

	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return cc, fmt.Errorf("dsn missing '@' separating credentials from address")
	}
	userinfo, rest := dsn[:at], dsn[at+1:]

	user, pass, _ := strings.Cut(userinfo, ":")
	unescapedPass, err := url.QueryUnescape(pass)
	if err != nil {
		return cc, fmt.Errorf("unescaping dsn password: %w", err)
	}
	cc.Username, cc.Password = user, unescapedPass

	if !strings.HasPrefix(rest, "tcp(") {
		return cc, fmt.Errorf("dsn address must be in tcp(host:port) form")
	}
	closeParen := strings.Index(rest, ")")
	if closeParen < 0 {
		return cc, fmt.Errorf("dsn address missing closing ')'")
	}
	hostPort := rest[len("tcp("):closeParen]
	host, portStr, ok := strings.Cut(hostPort, ":")
	if !ok {
		return cc, fmt.Errorf("dsn address missing port")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return cc, fmt.Errorf("dsn port %q: %w", portStr, err)
	}
	cc.Host, cc.Port = host, port

	tail := rest[closeParen+1:]
	tail = strings.TrimPrefix(tail, "/")
	dbname, query, _ := strings.Cut(tail, "?")
	cc.Database = dbname

	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return cc, fmt.Errorf("parsing dsn query parameters: %w", err)
		}
		cc.SSLMode = values.Get("ssl_mode")
	}

	return cc, nil
}

// Watcher watches a config file for changes and invokes callback with
// the reloaded PoolTuning only — connection fields are intentionally
// ignored on reload, since swapping credentials or the target host out
// from under a live Pool would invalidate every connection it holds.
type Watcher struct {
	path     string
	callback func(PoolTuning)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(PoolTuning)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[gomy config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	f, err := Load(cw.path)
	if err != nil {
		log.Printf("[gomy config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[gomy config] pool tuning reloaded from %s", cw.path)
	cw.callback(f.Pool)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
