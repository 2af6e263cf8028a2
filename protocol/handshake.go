package protocol

import "github.com/gomy/gomy/gomyerr"

// InitialHandshake is Protocol::HandshakeV10, received once per connection
// and never mutated afterward.
type InitialHandshake struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	Scramble        []byte // 8 + 12 bytes, concatenated and NUL-trimmed
	Capabilities    CapabilityFlag
	Charset         byte
	StatusFlags     ServerStatus
	AuthPluginName  string
}

// ParseInitialHandshake decodes Protocol::HandshakeV10 from payload.
func ParseInitialHandshake(payload []byte) (*InitialHandshake, error) {
	r := NewReader(payload)
	h := &InitialHandshake{}
	h.ProtocolVersion = r.Byte()
	h.ServerVersion = r.NullTerminatedString()
	h.ConnectionID = r.Uint32()
	scramble1 := append([]byte(nil), r.Bytes(8)...)
	r.Byte() // filler, always 0x00
	capLow := uint32(r.Uint16())
	if r.Len() == 0 {
		// Pre-4.1 servers omit everything past this point.
		h.Capabilities = CapabilityFlag(capLow)
		h.Scramble = scramble1
		return h, r.Err()
	}
	h.Charset = r.Byte()
	h.StatusFlags = ServerStatus(r.Uint16())
	capHigh := uint32(r.Uint16())
	h.Capabilities = CapabilityFlag(capLow | capHigh<<16)

	authDataLen := r.Byte()
	r.Bytes(10) // reserved, all zero

	var scramble2 []byte
	if h.Capabilities&ClientSecureConnection != 0 {
		n := int(authDataLen) - 8
		if n < 13 {
			n = 13
		}
		scramble2 = r.Bytes(n)
		if len(scramble2) > 0 && scramble2[len(scramble2)-1] == 0 {
			scramble2 = scramble2[:len(scramble2)-1]
		}
	}
	h.Scramble = append(scramble1, scramble2...)

	if h.Capabilities&ClientPluginAuth != 0 {
		h.AuthPluginName = r.NullTerminatedString()
	}
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing initial handshake")
	}
	return h, nil
}

// HandshakeResponse is Protocol::HandshakeResponse41, sent once the client
// has chosen a capability set and computed the authentication response.
type HandshakeResponse struct {
	Capabilities   CapabilityFlag
	MaxPacketSize  uint32
	Charset        byte
	Username       string
	AuthResponse   []byte
	Database       string
	AuthPluginName string
	ConnectAttrs   map[string]string
}

// Encode serializes the HandshakeResponse41 packet body.
func (h *HandshakeResponse) Encode() []byte {
	w := NewWriter(128 + len(h.AuthResponse) + len(h.Username) + len(h.Database))
	w.Uint32(uint32(h.Capabilities))
	w.Uint32(h.MaxPacketSize)
	w.Byte(h.Charset)
	w.Zeros(23)
	w.NullTerminatedString(h.Username)

	if h.Capabilities&ClientPluginAuthLenencClientData != 0 {
		w.LengthEncodedString(h.AuthResponse)
	} else {
		w.Byte(byte(len(h.AuthResponse)))
		w.Raw(h.AuthResponse)
	}

	if h.Capabilities&ClientConnectWithDB != 0 {
		w.NullTerminatedString(h.Database)
	}
	if h.Capabilities&ClientPluginAuth != 0 {
		w.NullTerminatedString(h.AuthPluginName)
	}
	if h.Capabilities&ClientConnectAttrs != 0 {
		attrs := NewWriter(64)
		for k, v := range h.ConnectAttrs {
			attrs.LengthEncodedString([]byte(k))
			attrs.LengthEncodedString([]byte(v))
		}
		w.LengthEncodedString(attrs.Bytes())
	}
	return w.Bytes()
}

// SSLRequest is sent on the plaintext socket to request a TLS upgrade
// before the real HandshakeResponse41 is sent. The server does not reply
// to it.
type SSLRequest struct {
	Capabilities  CapabilityFlag
	MaxPacketSize uint32
	Charset       byte
}

// Encode serializes the SSLRequest packet body: capability flags,
// max-packet-size, charset, and 23 reserved zero bytes.
func (s *SSLRequest) Encode() []byte {
	w := NewWriter(32)
	w.Uint32(uint32(s.Capabilities))
	w.Uint32(s.MaxPacketSize)
	w.Byte(s.Charset)
	w.Zeros(23)
	return w.Bytes()
}

// AuthSwitchRequest asks the client to reselect a plugin and re-hash the
// password with a new scramble.
type AuthSwitchRequest struct {
	PluginName string
	Scramble   []byte
}

// ParseAuthSwitchRequest decodes an AuthSwitchRequest payload (the leading
// 0xfe discriminator must already be consumed by the caller).
func ParseAuthSwitchRequest(payload []byte) (*AuthSwitchRequest, error) {
	r := NewReader(payload)
	name := r.NullTerminatedString()
	scramble := append([]byte(nil), r.Remaining()...)
	if len(scramble) > 0 && scramble[len(scramble)-1] == 0 {
		scramble = scramble[:len(scramble)-1]
	}
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing auth switch request")
	}
	return &AuthSwitchRequest{PluginName: name, Scramble: scramble}, nil
}

// EncodeAuthSwitchResponse builds the raw response to an AuthSwitchRequest:
// the new auth response bytes, unframed (no length prefix, no plugin name).
func EncodeAuthSwitchResponse(authResponse []byte) []byte {
	return authResponse
}

// IsInitialHandshake reports whether payload looks like a
// Protocol::HandshakeV10 packet (used to distinguish it from an ERR_Packet
// on connect).
func IsInitialHandshake(payload []byte) bool {
	return len(payload) > 0 && payload[0] != headerErr
}
