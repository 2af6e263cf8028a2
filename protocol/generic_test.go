package protocol

import "testing"

func TestIsDiscriminators(t *testing.T) {
	if !IsOK([]byte{0x00, 0x01}) {
		t.Error("expected IsOK")
	}
	if !IsErr([]byte{0xff, 0x01}) {
		t.Error("expected IsErr")
	}
	if !IsEOF([]byte{0xfe, 0x00, 0x00, 0x00, 0x00}) {
		t.Error("expected IsEOF for a short 0xfe payload")
	}
	if IsEOF(append([]byte{0xfe}, make([]byte, 10)...)) {
		t.Error("expected IsEOF to reject a long 0xfe payload (it's a length-encoded int, not EOF)")
	}
	if !IsAuthMoreData([]byte{0x01, 0x03}) {
		t.Error("expected IsAuthMoreData")
	}
	if !IsLocalInfileRequest([]byte{0xfb, 'f', 'i', 'l', 'e'}) {
		t.Error("expected IsLocalInfileRequest")
	}
}

func TestEncodeParseOKRoundTrip(t *testing.T) {
	want := &OKPacket{
		AffectedRows: 1,
		LastInsertID: 42,
		StatusFlags:  StatusAutocommit,
		Warnings:     0,
		Info:         "Rows matched: 1",
	}
	got, err := ParseOK(EncodeOK(want), false)
	if err != nil {
		t.Fatalf("ParseOK: %v", err)
	}
	if got.AffectedRows != want.AffectedRows || got.LastInsertID != want.LastInsertID {
		t.Errorf("ParseOK() = %+v, want %+v", got, want)
	}
	if got.Info != want.Info {
		t.Errorf("Info = %q, want %q", got.Info, want.Info)
	}
}

func TestEncodeParseErrRoundTrip(t *testing.T) {
	raw := EncodeErr(1045, "28000", "Access denied for user 'root'@'localhost'")
	pkt, err := ParseErr(raw)
	if err != nil {
		t.Fatalf("ParseErr: %v", err)
	}
	if pkt.Code != 1045 {
		t.Errorf("Code = %d, want 1045", pkt.Code)
	}
	if pkt.SQLState != "28000" {
		t.Errorf("SQLState = %q, want %q", pkt.SQLState, "28000")
	}
	if pkt.Message != "Access denied for user 'root'@'localhost'" {
		t.Errorf("Message = %q", pkt.Message)
	}
}

func TestEncodeErrPadsShortSQLState(t *testing.T) {
	raw := EncodeErr(1234, "42", "short state")
	pkt, err := ParseErr(raw)
	if err != nil {
		t.Fatalf("ParseErr: %v", err)
	}
	if pkt.SQLState != "42000" {
		t.Errorf("SQLState = %q, want zero-padded %q", pkt.SQLState, "42000")
	}
}

func TestErrPacketAsError(t *testing.T) {
	pkt := &ErrPacket{Code: 1045, SQLState: "28000", Message: "Access denied"}
	err := pkt.AsError()
	if err.VendorCode != 1045 || err.SQLState != "28000" {
		t.Errorf("AsError() = %+v", err)
	}
}

func TestEncodeParseEOFRoundTrip(t *testing.T) {
	raw := EncodeEOF(2, StatusInTrans)
	pkt, err := ParseEOF(raw)
	if err != nil {
		t.Fatalf("ParseEOF: %v", err)
	}
	if pkt.Warnings != 2 || pkt.StatusFlags != StatusInTrans {
		t.Errorf("ParseEOF() = %+v", pkt)
	}
}

func TestParseAuthMoreData(t *testing.T) {
	data := ParseAuthMoreData([]byte{0x01, 0x04})
	if len(data.Data) != 1 || data.Data[0] != 0x04 {
		t.Errorf("Data = %v, want [0x04]", data.Data)
	}
	empty := ParseAuthMoreData(nil)
	if empty.Data != nil {
		t.Errorf("expected nil Data for empty payload, got %v", empty.Data)
	}
}
