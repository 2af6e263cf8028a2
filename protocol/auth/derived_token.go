package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// DerivedTokenPlugin is a worked example of an external authentication
// plugin registered through a Registry rather than the built-in fallback
// chain. It stands in for a token-issuing provider (an AWS IAM token
// generator, a Vault dynamic secret, or similar) that derives a
// fixed-length auth_response from a short-lived token and the server
// scramble instead of sending a password hash directly.
//
// It registers under a caller-supplied plugin name so it can masquerade as
// mysql_clear_password or a custom plugin the server is configured to
// request, and it always requires confidentiality since the derived bytes
// are not otherwise obscured on the wire.
type DerivedTokenPlugin struct {
	PluginName string
	Iterations int
	KeyLen     int
}

// NewDerivedTokenPlugin returns a DerivedTokenPlugin with the iteration
// count and key length PBKDF2-HMAC-SHA256 implementations typically use.
func NewDerivedTokenPlugin(name string) *DerivedTokenPlugin {
	return &DerivedTokenPlugin{PluginName: name, Iterations: 4096, KeyLen: 32}
}

func (p *DerivedTokenPlugin) Name() string { return p.PluginName }

func (p *DerivedTokenPlugin) RequiresConfidentiality() bool { return true }

// HashPassword treats password as an opaque token and derives the
// auth_response via PBKDF2-HMAC-SHA256 keyed on the server scramble, so a
// leaked auth_response can't be replayed against a different handshake.
func (p *DerivedTokenPlugin) HashPassword(password, scramble []byte) ([]byte, error) {
	return pbkdf2.Key(password, scramble, p.Iterations, p.KeyLen, sha256.New), nil
}
