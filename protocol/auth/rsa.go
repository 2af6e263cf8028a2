package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // MySQL's RSA public-key exchange is defined over SHA-1 OAEP
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// ParsePublicKeyPEM parses the PEM-encoded RSA public key a server returns
// in response to a public-key request (a packet holding the single byte
// 0x02, sent during the caching_sha2_password / sha256_password full-auth
// flow).
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("auth: no PEM block found in public key response")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing public key: %w", err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: public key is not RSA")
	}
	return rsaKey, nil
}

// EncryptPassword XORs password with scramble (repeating the scramble as
// needed), appends a trailing NUL, and RSA-OAEP-encrypts the result with
// the server's public key — the full-auth payload for caching_sha2_password
// and sha256_password over a plaintext transport.
func EncryptPassword(password, scramble []byte, pub *rsa.PublicKey) ([]byte, error) {
	plain := xorWithScramble(password, scramble)
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil) //nolint:gosec
}

func xorWithScramble(password, scramble []byte) []byte {
	out := make([]byte, len(password)+1)
	for i := range password {
		out[i] = password[i] ^ scramble[i%len(scramble)]
	}
	out[len(password)] = 0
	return out
}
