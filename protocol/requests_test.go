package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeSimpleCommands(t *testing.T) {
	if got := EncodeQuit(); !bytes.Equal(got, []byte{byte(ComQuit)}) {
		t.Errorf("EncodeQuit() = %v", got)
	}
	if got := EncodePing(); !bytes.Equal(got, []byte{byte(ComPing)}) {
		t.Errorf("EncodePing() = %v", got)
	}
	if got := EncodeResetConnection(); !bytes.Equal(got, []byte{byte(ComResetConnection)}) {
		t.Errorf("EncodeResetConnection() = %v", got)
	}
	if got := EncodeStatistics(); !bytes.Equal(got, []byte{byte(ComStatistics)}) {
		t.Errorf("EncodeStatistics() = %v", got)
	}
}

func TestEncodeQuery(t *testing.T) {
	got := EncodeQuery("SELECT 1")
	want := append([]byte{byte(ComQuery)}, []byte("SELECT 1")...)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeQuery() = %v, want %v", got, want)
	}
}

func TestEncodeInitDB(t *testing.T) {
	got := EncodeInitDB("app")
	want := append([]byte{byte(ComInitDB)}, []byte("app")...)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeInitDB() = %v, want %v", got, want)
	}
}

func TestEncodeStmtPrepareCloseReset(t *testing.T) {
	if got := EncodeStmtPrepare("SELECT ?"); got[0] != byte(ComStmtPrepare) {
		t.Errorf("EncodeStmtPrepare opcode = %#x", got[0])
	}
	closePkt := EncodeStmtClose(5)
	if closePkt[0] != byte(ComStmtClose) {
		t.Errorf("EncodeStmtClose opcode = %#x", closePkt[0])
	}
	r := NewReader(closePkt[1:])
	if id := r.Uint32(); id != 5 {
		t.Errorf("EncodeStmtClose statement id = %d, want 5", id)
	}
	resetPkt := EncodeStmtReset(5)
	if resetPkt[0] != byte(ComStmtReset) {
		t.Errorf("EncodeStmtReset opcode = %#x", resetPkt[0])
	}
}

func TestEncodeStmtFetch(t *testing.T) {
	raw := EncodeStmtFetch(9, 100)
	r := NewReader(raw[1:])
	if id := r.Uint32(); id != 9 {
		t.Errorf("statement id = %d, want 9", id)
	}
	if n := r.Uint32(); n != 100 {
		t.Errorf("numRows = %d, want 100", n)
	}
}

func TestEncodeStmtExecuteNoParams(t *testing.T) {
	raw := EncodeStmtExecute(3, CursorTypeNoCursor, nil)
	r := NewReader(raw[1:])
	if id := r.Uint32(); id != 3 {
		t.Errorf("statement id = %d, want 3", id)
	}
	if flags := r.Byte(); flags != byte(CursorTypeNoCursor) {
		t.Errorf("cursor flags = %#x", flags)
	}
	if it := r.Uint32(); it != 1 {
		t.Errorf("iteration count = %d, want 1", it)
	}
	if r.Len() != 0 {
		t.Errorf("expected no trailing bytes with zero params, got %d", r.Len())
	}
}

func TestEncodeStmtExecuteWithParams(t *testing.T) {
	params := []BoundParameter{
		{Type: TypeLong, Value: func() []byte {
			w := NewWriter(4)
			w.Uint32(7)
			return w.Bytes()
		}()},
		{Type: TypeVarString, Value: nil},
	}
	raw := EncodeStmtExecute(1, CursorTypeReadOnly, params)

	r := NewReader(raw[1:])
	r.Uint32() // statement id
	if flags := r.Byte(); flags != byte(CursorTypeReadOnly) {
		t.Errorf("cursor flags = %#x, want CursorTypeReadOnly", flags)
	}
	r.Uint32() // iteration count

	nulls := r.NullBitmap(len(params), 0)
	if nulls[0] || !nulls[1] {
		t.Errorf("null bitmap = %v, want [false true]", nulls)
	}
	if boundFlag := r.Byte(); boundFlag != 1 {
		t.Errorf("new-params-bound = %d, want 1", boundFlag)
	}
	typeCode0 := r.Uint16()
	if ColumnType(typeCode0) != TypeLong {
		t.Errorf("type code 0 = %#x, want TypeLong", typeCode0)
	}
	typeCode1 := r.Uint16()
	if ColumnType(typeCode1) != TypeVarString {
		t.Errorf("type code 1 = %#x, want TypeVarString", typeCode1)
	}
	// Only the non-NULL parameter's value follows.
	if v := r.Uint32(); v != 7 {
		t.Errorf("param 0 value = %d, want 7", v)
	}
	if r.Len() != 0 {
		t.Errorf("expected no trailing bytes, got %d", r.Len())
	}
}

func TestEncodeStmtExecuteUnsignedTypeCode(t *testing.T) {
	params := []BoundParameter{{Type: TypeLong, Unsigned: true, Value: []byte{1, 2, 3, 4}}}
	raw := EncodeStmtExecute(1, CursorTypeNoCursor, params)

	r := NewReader(raw[1:])
	r.Uint32()
	r.Byte()
	r.Uint32()
	r.NullBitmap(1, 0)
	r.Byte()
	typeCode := r.Uint16()
	if typeCode&0x8000 == 0 {
		t.Error("expected the unsigned bit (0x8000) set in the type code")
	}
}

func TestChangeUserRequestEncode(t *testing.T) {
	req := &ChangeUserRequest{
		Username:     "app",
		AuthResponse: []byte{1, 2, 3, 4},
		Database:     "mydb",
		Charset:      33,
		AuthPlugin:   "mysql_native_password",
	}
	raw := req.Encode(ClientSecureConnection | ClientPluginAuth)
	if raw[0] != byte(ComChangeUser) {
		t.Fatalf("opcode = %#x, want ComChangeUser", raw[0])
	}

	r := NewReader(raw[1:])
	if u := r.NullTerminatedString(); u != "app" {
		t.Errorf("username = %q, want %q", u, "app")
	}
	authLen := r.Byte()
	if authLen != 4 {
		t.Fatalf("auth response length = %d, want 4", authLen)
	}
	if resp := r.Bytes(int(authLen)); !bytes.Equal(resp, req.AuthResponse) {
		t.Errorf("auth response = %v, want %v", resp, req.AuthResponse)
	}
	if db := r.NullTerminatedString(); db != "mydb" {
		t.Errorf("database = %q, want %q", db, "mydb")
	}
	if cs := r.Uint16(); cs != 33 {
		t.Errorf("charset = %d, want 33", cs)
	}
	if plugin := r.NullTerminatedString(); plugin != "mysql_native_password" {
		t.Errorf("auth plugin = %q, want %q", plugin, "mysql_native_password")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected decode error: %v", r.Err())
	}
}
