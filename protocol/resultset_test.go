package protocol

import "testing"

func TestParseColumnCount(t *testing.T) {
	w := NewWriter(0)
	w.LengthEncodedInt(3)
	n, err := ParseColumnCount(w.Bytes())
	if err != nil {
		t.Fatalf("ParseColumnCount: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d, want 3", n)
	}
}

func TestParseColumnDefinition(t *testing.T) {
	w := NewWriter(0)
	w.LengthEncodedString([]byte("def"))
	w.LengthEncodedString([]byte("myschema"))
	w.LengthEncodedString([]byte("mytable"))
	w.LengthEncodedString([]byte("mytable"))
	w.LengthEncodedString([]byte("id"))
	w.LengthEncodedString([]byte("id"))
	w.LengthEncodedInt(0x0c)
	w.Uint16(33) // utf8_general_ci
	w.Uint32(11)
	w.Byte(byte(TypeLong))
	w.Uint16(uint16(FlagNotNull | FlagPriKey))
	w.Byte(0)
	w.Zeros(2)

	col, err := ParseColumnDefinition(w.Bytes())
	if err != nil {
		t.Fatalf("ParseColumnDefinition: %v", err)
	}
	if col.Schema != "myschema" || col.Table != "mytable" || col.Name != "id" {
		t.Errorf("unexpected column identity: %+v", col)
	}
	if col.Type != TypeLong {
		t.Errorf("Type = %v, want TypeLong", col.Type)
	}
	if col.Flags&FlagPriKey == 0 {
		t.Error("expected FlagPriKey set")
	}
	if col.Charset != 33 {
		t.Errorf("Charset = %d, want 33", col.Charset)
	}
}

func TestParseTextRowWithNulls(t *testing.T) {
	w := NewWriter(0)
	w.LengthEncodedString([]byte("1"))
	w.Byte(0xfb) // NULL
	w.LengthEncodedString([]byte("hello"))

	row, err := ParseTextRow(w.Bytes(), 3)
	if err != nil {
		t.Fatalf("ParseTextRow: %v", err)
	}
	if string(row.Values[0]) != "1" {
		t.Errorf("Values[0] = %q, want %q", row.Values[0], "1")
	}
	if row.Values[1] != nil {
		t.Errorf("Values[1] = %v, want nil (NULL)", row.Values[1])
	}
	if string(row.Values[2]) != "hello" {
		t.Errorf("Values[2] = %q, want %q", row.Values[2], "hello")
	}
}

func TestParseBinaryRowDecodesTypedValues(t *testing.T) {
	columns := []*ColumnDefinition{
		{Type: TypeLong},
		{Type: TypeLong, Flags: FlagUnsigned},
		{Type: TypeVarString},
		{Type: TypeNull},
	}
	nulls := NullBitmap([]bool{false, false, false, true}, 2)

	w := NewWriter(0)
	w.Byte(0x00) // row header
	w.Raw(nulls)
	neg := int32(-42)
	w.Uint32(uint32(neg))
	w.Uint32(42)
	w.LengthEncodedString([]byte("hi"))
	// column 3 is NULL: nothing encoded for it

	row, err := ParseBinaryRow(w.Bytes(), columns)
	if err != nil {
		t.Fatalf("ParseBinaryRow: %v", err)
	}
	if v, ok := row.Values[0].(int32); !ok || v != -42 {
		t.Errorf("Values[0] = %v (%T), want int32(-42)", row.Values[0], row.Values[0])
	}
	if v, ok := row.Values[1].(uint32); !ok || v != 42 {
		t.Errorf("Values[1] = %v (%T), want uint32(42)", row.Values[1], row.Values[1])
	}
	if v, ok := row.Values[2].([]byte); !ok || string(v) != "hi" {
		t.Errorf("Values[2] = %v (%T), want []byte(\"hi\")", row.Values[2], row.Values[2])
	}
	if row.Values[3] != nil {
		t.Errorf("Values[3] = %v, want nil (NULL)", row.Values[3])
	}
}

func TestParseBinaryRowUnsupportedType(t *testing.T) {
	columns := []*ColumnDefinition{{Type: ColumnType(0xaa)}}
	nulls := NullBitmap([]bool{false}, 2)

	w := NewWriter(0)
	w.Byte(0x00)
	w.Raw(nulls)

	_, err := ParseBinaryRow(w.Bytes(), columns)
	if err == nil {
		t.Fatal("expected an error for an unsupported column type")
	}
}

func TestParseStmtPrepareOk(t *testing.T) {
	w := NewWriter(0)
	w.Byte(0x00)
	w.Uint32(7)
	w.Uint16(2)
	w.Uint16(1)
	w.Byte(0)
	w.Uint16(0)

	pkt, err := ParseStmtPrepareOk(w.Bytes())
	if err != nil {
		t.Fatalf("ParseStmtPrepareOk: %v", err)
	}
	if pkt.StatementID != 7 || pkt.NumColumns != 2 || pkt.NumParams != 1 {
		t.Errorf("unexpected StmtPrepareOk: %+v", pkt)
	}
}

func TestParseStatistics(t *testing.T) {
	stats := ParseStatistics([]byte("Uptime: 1  Threads: 2"))
	if stats.Text != "Uptime: 1  Threads: 2" {
		t.Errorf("Text = %q", stats.Text)
	}
}
