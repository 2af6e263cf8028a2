package auth

import "crypto/sha256"

// CachingSHA2 implements caching_sha2_password:
// SHA256(password) XOR SHA256(SHA256(SHA256(password)) || scramble).
// The full-auth RSA/cleartext continuation (AuthMoreData 0x04) is handled
// by the state machine in client/engine.go using EncryptPassword (rsa.go),
// since it depends on whether TLS is active for this connection.
type CachingSHA2 struct{}

func (CachingSHA2) Name() string { return "caching_sha2_password" }

func (CachingSHA2) RequiresConfidentiality() bool { return false }

func (CachingSHA2) HashPassword(password, scramble []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, nil
	}
	message1 := sha256.Sum256(password)
	message1Hash := sha256.Sum256(message1[:])

	h := sha256.New()
	h.Write(message1Hash[:])
	h.Write(scramble)
	message2 := h.Sum(nil)

	out := make([]byte, len(message1))
	for i := range out {
		out[i] = message1[i] ^ message2[i]
	}
	return out, nil
}

// FastAuthSuccess is the AuthMoreData payload marker meaning the cached
// verifier matched and authentication is complete.
const FastAuthSuccess = 0x03

// FullAuthRequired is the AuthMoreData payload marker meaning the server
// wants the full authentication exchange (cleartext over TLS, or RSA
// public-key encryption otherwise).
const FullAuthRequired = 0x04
