package client

import (
	"crypto/tls"
	"time"

	"github.com/gomy/gomy/protocol/auth"
)

// SSLMode selects how (or whether) this client upgrades to TLS.
type SSLMode int

const (
	// SSLModeNone never attempts a TLS upgrade.
	SSLModeNone SSLMode = iota
	// SSLModePreferred upgrades to TLS if the server advertises CLIENT_SSL,
	// but tolerates a plaintext connection if it doesn't.
	SSLModePreferred
	// SSLModeRequired fails the connection if TLS cannot be negotiated.
	SSLModeRequired
	// SSLModeTrusted is SSLModeRequired plus full certificate verification
	// against the system trust store.
	SSLModeTrusted
)

// Config configures a single connection's dial and authentication. It is
// the connection-level counterpart of pool.Config, covering everything
// except the pool-tuning fields.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	SSLMode   SSLMode
	TLSConfig *tls.Config // used as a base when SSLMode != SSLModeNone

	AllowPublicKeyRetrieval bool
	AuthPluginOverride      string // forces plugin selection, bypassing the server's suggestion
	PluginRegistry          *auth.Registry

	UseCursorFetch bool
	CursorFetchSize uint32

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	ConnectAttrs map[string]string

	Charset byte // default connection charset id, 0x21 = utf8_general_ci

	MultiStatements bool
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sane defaults.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == 0 {
		c.Charset = 0x21
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CursorFetchSize == 0 {
		c.CursorFetchSize = 1000
	}
	return c
}
