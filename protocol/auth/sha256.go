package auth

// SHA256Password implements sha256_password. Unlike caching_sha2_password
// it never uses a server-side verifier cache, so it always follows the
// full-auth path: cleartext over TLS, or RSA-OAEP encryption of
// password XOR scramble otherwise. HashPassword is only called to build a
// throwaway auth_response for the initial HandshakeResponse41; the server
// always answers it with AuthMoreData(full_auth) and the real exchange
// happens in the state machine.
type SHA256Password struct{}

func (SHA256Password) Name() string { return "sha256_password" }

func (SHA256Password) RequiresConfidentiality() bool { return false }

func (SHA256Password) HashPassword(password, scramble []byte) ([]byte, error) {
	// A single 0x01 byte requests the server to skip straight to
	// full-auth instead of attempting a (pointless, plugin has no cache)
	// scrambled comparison.
	if len(password) == 0 {
		return nil, nil
	}
	return []byte{0x01}, nil
}
