package auth

import "crypto/sha1" //nolint:gosec // mysql_native_password is defined over SHA-1

// NativePassword implements mysql_native_password:
// SHA1(password) XOR SHA1(scramble || SHA1(SHA1(password))).
type NativePassword struct{}

func (NativePassword) Name() string { return "mysql_native_password" }

func (NativePassword) RequiresConfidentiality() bool { return false }

func (NativePassword) HashPassword(password, scramble []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, nil
	}
	h1 := sha1.Sum(password) //nolint:gosec
	h2 := sha1.Sum(h1[:])    //nolint:gosec

	h := sha1.New() //nolint:gosec
	h.Write(scramble)
	h.Write(h2[:])
	h3 := h.Sum(nil)

	out := make([]byte, len(h1))
	for i := range out {
		out[i] = h1[i] ^ h3[i]
	}
	return out, nil
}
