// Package auth implements the pluggable MySQL authentication contract:
// a small capability set {name, requiresConfidentiality, hashPassword}
// selected by server-suggested plugin name, with a registry external
// callers can extend (the integration seam used by IAM-token-based
// "clear password" authentication).
package auth

import "sync"

// Plugin is the contract every authentication method implements.
type Plugin interface {
	// Name is the server-visible plugin identifier, e.g.
	// "mysql_native_password".
	Name() string
	// HashPassword computes the auth_response bytes for the given
	// password and server scramble.
	HashPassword(password, scramble []byte) ([]byte, error)
	// RequiresConfidentiality reports whether this plugin must only be
	// used once TLS is active.
	RequiresConfidentiality() bool
}

// Registry holds external plugins consulted before the built-in fallback
// chain, keyed by server-visible name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty external-plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds or replaces a plugin by name.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Lookup returns the plugin registered under name, if any.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// builtins are consulted after the external registry misses.
var builtins = map[string]Plugin{
	NativePassword{}.Name():  NativePassword{},
	CachingSHA2{}.Name():     CachingSHA2{},
	SHA256Password{}.Name():  SHA256Password{},
	ClearPassword{}.Name():   ClearPassword{},
}

// Resolve selects a plugin by name, consulting the external registry
// first and falling back to the built-ins. A nil registry is treated as
// empty.
func Resolve(registry *Registry, name string) (Plugin, bool) {
	if registry != nil {
		if p, ok := registry.Lookup(name); ok {
			return p, true
		}
	}
	p, ok := builtins[name]
	return p, ok
}
