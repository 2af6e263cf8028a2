package protocol

// EncodeQuit builds the ComQuit request body.
func EncodeQuit() []byte {
	return []byte{byte(ComQuit)}
}

// EncodeInitDB builds the ComInitDB request body.
func EncodeInitDB(schema string) []byte {
	w := NewWriter(1 + len(schema))
	w.Byte(byte(ComInitDB))
	w.Raw([]byte(schema))
	return w.Bytes()
}

// EncodeQuery builds the ComQuery request body.
func EncodeQuery(sql string) []byte {
	w := NewWriter(1 + len(sql))
	w.Byte(byte(ComQuery))
	w.Raw([]byte(sql))
	return w.Bytes()
}

// EncodeStatistics builds the ComStatistics request body.
func EncodeStatistics() []byte {
	return []byte{byte(ComStatistics)}
}

// EncodePing builds the ComPing request body.
func EncodePing() []byte {
	return []byte{byte(ComPing)}
}

// EncodeResetConnection builds the ComResetConnection request body.
func EncodeResetConnection() []byte {
	return []byte{byte(ComResetConnection)}
}

// EncodeSetOption builds the ComSetOption request body. option is 0 to
// enable CLIENT_MULTI_STATEMENTS, 1 to disable it.
func EncodeSetOption(option uint16) []byte {
	w := NewWriter(3)
	w.Byte(byte(ComSetOption))
	w.Uint16(option)
	return w.Bytes()
}

// ChangeUserRequest is the ComChangeUser request: re-authenticate an
// existing connection as a different user without reconnecting.
type ChangeUserRequest struct {
	Username     string
	AuthResponse []byte
	Database     string
	Charset      byte
	AuthPlugin   string
	ConnectAttrs map[string]string
}

// Encode builds the ComChangeUser request body.
func (c *ChangeUserRequest) Encode(capabilities CapabilityFlag) []byte {
	w := NewWriter(64 + len(c.AuthResponse))
	w.Byte(byte(ComChangeUser))
	w.NullTerminatedString(c.Username)
	if capabilities&ClientSecureConnection != 0 {
		w.Byte(byte(len(c.AuthResponse)))
		w.Raw(c.AuthResponse)
	} else {
		w.NullTerminatedString(string(c.AuthResponse))
	}
	w.NullTerminatedString(c.Database)
	w.Uint16(uint16(c.Charset))
	if capabilities&ClientPluginAuth != 0 {
		w.NullTerminatedString(c.AuthPlugin)
	}
	if capabilities&ClientConnectAttrs != 0 {
		attrs := NewWriter(64)
		for k, v := range c.ConnectAttrs {
			attrs.LengthEncodedString([]byte(k))
			attrs.LengthEncodedString([]byte(v))
		}
		w.LengthEncodedString(attrs.Bytes())
	}
	return w.Bytes()
}

// EncodeStmtPrepare builds the ComStmtPrepare request body.
func EncodeStmtPrepare(sql string) []byte {
	w := NewWriter(1 + len(sql))
	w.Byte(byte(ComStmtPrepare))
	w.Raw([]byte(sql))
	return w.Bytes()
}

// EncodeStmtClose builds the ComStmtClose request body. The server does
// not reply to this command.
func EncodeStmtClose(statementID uint32) []byte {
	w := NewWriter(5)
	w.Byte(byte(ComStmtClose))
	w.Uint32(statementID)
	return w.Bytes()
}

// EncodeStmtReset builds the ComStmtReset request body, which clears any
// long-data buffers and re-arms the statement for execution.
func EncodeStmtReset(statementID uint32) []byte {
	w := NewWriter(5)
	w.Byte(byte(ComStmtReset))
	w.Uint32(statementID)
	return w.Bytes()
}

// EncodeStmtFetch builds the ComStmtFetch request body requesting up to
// numRows additional rows from a server-side cursor.
func EncodeStmtFetch(statementID uint32, numRows uint32) []byte {
	w := NewWriter(9)
	w.Byte(byte(ComStmtFetch))
	w.Uint32(statementID)
	w.Uint32(numRows)
	return w.Bytes()
}

// CursorType is the flags byte of ComStmtExecute controlling server-side
// cursor behavior.
type CursorType byte

const (
	CursorTypeNoCursor  CursorType = 0x00
	CursorTypeReadOnly  CursorType = 0x01
	CursorTypeForUpdate CursorType = 0x02
	CursorTypeScrollable CursorType = 0x04
)

// BoundParameter pairs a parameter's declared column type with its
// optional value (nil means SQL NULL, contributing only to the null
// bitmap). Parameters are ordered by their 1-based position.
type BoundParameter struct {
	Type     ColumnType
	Unsigned bool
	Value    []byte // pre-encoded binary value; empty for NULL
}

// EncodeStmtExecute builds the ComStmtExecute request body:
// opcode | statementId | flags | iterationCount=1 |
// (if params>0) nullBitmap | newParamsBound | typeCodes | values
// newParamsBound is always sent as 1 when params are present: re-sending
// type codes on every execution is simpler than maintaining the
// server-side type cache and costs at most two bytes per parameter.
func EncodeStmtExecute(statementID uint32, cursor CursorType, params []BoundParameter) []byte {
	w := NewWriter(16 + len(params)*8)
	w.Byte(byte(ComStmtExecute))
	w.Uint32(statementID)
	w.Byte(byte(cursor))
	w.Uint32(1) // iteration count, always 1

	if len(params) == 0 {
		return w.Bytes()
	}

	nulls := make([]bool, len(params))
	for i, p := range params {
		nulls[i] = p.Value == nil
	}
	w.Raw(NullBitmap(nulls, 0))
	w.Byte(1) // new-params-bound

	for _, p := range params {
		typeCode := uint16(p.Type)
		if p.Unsigned {
			typeCode |= 0x8000
		}
		w.Uint16(typeCode)
	}
	for i, p := range params {
		if nulls[i] {
			continue
		}
		w.Raw(p.Value)
	}
	return w.Bytes()
}
