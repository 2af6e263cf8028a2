package protocol

import "github.com/gomy/gomy/gomyerr"

// OKPacket is Protocol::OK_Packet, also used (with EOFFlag set) for the
// deprecate-EOF row-stream terminator.
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  ServerStatus
	Warnings     uint16
	Info         string
	EOFFlag      bool // true when this OK stands in for a deprecated EOF
}

// ErrPacket is Protocol::ERR_Packet, forwarded to callers verbatim.
type ErrPacket struct {
	Code     uint16
	SQLState string
	Message  string
}

// AsError converts an ErrPacket into the shared error taxonomy.
func (e *ErrPacket) AsError() *gomyerr.Error {
	return gomyerr.Server(e.Code, e.SQLState, e.Message)
}

// EOFPacket is Protocol::EOF_Packet, the pre-deprecate-EOF row-stream
// terminator.
type EOFPacket struct {
	Warnings    uint16
	StatusFlags ServerStatus
}

// AuthMoreData carries plugin-specific continuation bytes (e.g.
// caching_sha2_password's fast_auth_success / full_auth markers, or a
// PEM-encoded RSA public key).
type AuthMoreData struct {
	Data []byte
}

// IsOK reports whether payload starts with the OK_Packet header 0x00. Only
// the first byte is checked; binary-protocol rows also start with 0x00.
func IsOK(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerOK
}

// IsErr reports whether payload is an ERR_Packet.
func IsErr(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerErr
}

// IsEOF reports whether payload is a classic EOF_Packet (0xfe, short).
// The deprecate-EOF capability turns this terminator into an OKPacket
// instead; callers must check both.
func IsEOF(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerEOF && len(payload) < 9
}

// IsAuthMoreData reports whether payload is an AuthMoreData packet.
func IsAuthMoreData(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerAuthMore
}

// IsAuthSwitchRequest reports whether payload is an AuthSwitchRequest.
// Both EOF and AuthSwitchRequest share the 0xfe discriminator; callers in
// the auth state machine only ever expect AuthSwitchRequest there, while
// callers in the result-set reader only ever expect EOF — the two are
// never ambiguous in context.
func IsAuthSwitchRequest(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerEOF
}

// IsLocalInfileRequest reports whether payload is a LOCAL INFILE request.
// This client doesn't support it; detecting it lets ComQuery reject it
// cleanly instead of misparsing it as a column count.
func IsLocalInfileRequest(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerLocalInfile
}

// ParseOK decodes an OK_Packet, either the plain 0x00 form or the 0xfe
// EOF-replacement form (which sets EOFFlag). Both forms are parsed the
// same way; the deprecateEOF argument does not change the result.
func ParseOK(payload []byte, deprecateEOF bool) (*OKPacket, error) {
	r := NewReader(payload)
	header := r.Byte()
	pkt := &OKPacket{EOFFlag: header == headerEOF}
	affected, _ := r.LengthEncodedInt()
	pkt.AffectedRows = affected
	lastID, _ := r.LengthEncodedInt()
	pkt.LastInsertID = lastID
	pkt.StatusFlags = ServerStatus(r.Uint16())
	pkt.Warnings = r.Uint16()
	if r.Len() > 0 {
		pkt.Info = string(r.Remaining())
	}
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing OK packet")
	}
	return pkt, nil
}

// ParseErr decodes an ERR_Packet: 0xff + code(2) + '#' + sqlstate(5) + message.
func ParseErr(payload []byte) (*ErrPacket, error) {
	r := NewReader(payload)
	r.Byte() // 0xff
	pkt := &ErrPacket{}
	pkt.Code = r.Uint16()
	if r.Len() > 0 && payload[r.pos] == '#' {
		r.Byte()
		pkt.SQLState = string(r.Bytes(5))
	}
	pkt.Message = string(r.Remaining())
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing ERR packet")
	}
	return pkt, nil
}

// ParseEOF decodes a classic EOF_Packet: 0xfe + warnings(2) + status(2).
func ParseEOF(payload []byte) (*EOFPacket, error) {
	r := NewReader(payload)
	r.Byte() // 0xfe
	pkt := &EOFPacket{}
	pkt.Warnings = r.Uint16()
	pkt.StatusFlags = ServerStatus(r.Uint16())
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing EOF packet")
	}
	return pkt, nil
}

// ParseAuthMoreData decodes an AuthMoreData packet (0x01 + data).
func ParseAuthMoreData(payload []byte) *AuthMoreData {
	if len(payload) == 0 {
		return &AuthMoreData{}
	}
	return &AuthMoreData{Data: payload[1:]}
}

// EncodeErr builds an ERR_Packet payload.
func EncodeErr(code uint16, sqlState, message string) []byte {
	w := NewWriter(16 + len(message))
	w.Byte(headerErr)
	w.Uint16(code)
	w.Byte('#')
	state := sqlState
	if len(state) > 5 {
		state = state[:5]
	}
	for len(state) < 5 {
		state += "0"
	}
	w.Raw([]byte(state))
	w.Raw([]byte(message))
	return w.Bytes()
}

// EncodeOK builds an OK_Packet payload.
func EncodeOK(pkt *OKPacket) []byte {
	w := NewWriter(16 + len(pkt.Info))
	if pkt.EOFFlag {
		w.Byte(headerEOF)
	} else {
		w.Byte(headerOK)
	}
	w.LengthEncodedInt(pkt.AffectedRows)
	w.LengthEncodedInt(pkt.LastInsertID)
	w.Uint16(uint16(pkt.StatusFlags))
	w.Uint16(pkt.Warnings)
	w.Raw([]byte(pkt.Info))
	return w.Bytes()
}

// EncodeEOF builds a classic EOF_Packet payload.
func EncodeEOF(warnings uint16, status ServerStatus) []byte {
	w := NewWriter(5)
	w.Byte(headerEOF)
	w.Uint16(warnings)
	w.Uint16(uint16(status))
	return w.Bytes()
}
