package protocol

import (
	"math"

	"github.com/gomy/gomy/gomyerr"
)

// ParseColumnCount decodes the length-encoded integer that announces how
// many ColumnDefinition packets follow a Query or StmtExecute response.
func ParseColumnCount(payload []byte) (uint64, error) {
	r := NewReader(payload)
	n, ok := r.LengthEncodedInt()
	if !ok {
		return 0, gomyerr.New(gomyerr.KindProtocolFrame, "column count packet encodes NULL")
	}
	if err := r.Err(); err != nil {
		return 0, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing column count")
	}
	return n, nil
}

// ColumnDefinition is Protocol::ColumnDefinition41.
type ColumnDefinition struct {
	Catalog      string
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	Charset      uint16
	ColumnLength uint32
	Type         ColumnType
	Flags        ColumnFlag
	Decimals     byte
}

// ParseColumnDefinition decodes Protocol::ColumnDefinition41.
func ParseColumnDefinition(payload []byte) (*ColumnDefinition, error) {
	r := NewReader(payload)
	col := &ColumnDefinition{}
	b, _ := r.LengthEncodedString()
	col.Catalog = string(b)
	b, _ = r.LengthEncodedString()
	col.Schema = string(b)
	b, _ = r.LengthEncodedString()
	col.Table = string(b)
	b, _ = r.LengthEncodedString()
	col.OrgTable = string(b)
	b, _ = r.LengthEncodedString()
	col.Name = string(b)
	b, _ = r.LengthEncodedString()
	col.OrgName = string(b)
	r.LengthEncodedInt() // length of fixed-length fields, always 0x0c
	col.Charset = r.Uint16()
	col.ColumnLength = r.Uint32()
	col.Type = ColumnType(r.Byte())
	col.Flags = ColumnFlag(r.Uint16())
	col.Decimals = r.Byte()
	r.Bytes(2) // filler
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing column definition")
	}
	return col, nil
}

// TextRow is one row of the text result-set protocol: every value is a
// length-encoded string, or NULL.
type TextRow struct {
	Values [][]byte // nil element means SQL NULL
}

// ParseTextRow decodes one text-protocol row of numColumns values.
func ParseTextRow(payload []byte, numColumns int) (*TextRow, error) {
	r := NewReader(payload)
	row := &TextRow{Values: make([][]byte, numColumns)}
	for i := 0; i < numColumns; i++ {
		v, ok := r.LengthEncodedString()
		if ok {
			row.Values[i] = v
		}
	}
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing text row")
	}
	return row, nil
}

// BinaryRow is one row of the binary result-set protocol produced by a
// prepared statement: a null bitmap plus per-type binary values.
type BinaryRow struct {
	Values []any // nil element means SQL NULL; concrete Go type per column
}

// ParseBinaryRow decodes one binary-protocol row given its column
// definitions. payload is the whole row packet: its leading 0x00 packet
// header byte (ComStmtExecute/ComStmtFetch row framing puts it first,
// distinct from the null bitmap) is skipped here.
func ParseBinaryRow(payload []byte, columns []*ColumnDefinition) (*BinaryRow, error) {
	r := NewReader(payload)
	r.Byte() // packet header, always 0x00 for a row
	nulls := r.NullBitmap(len(columns), 2)
	row := &BinaryRow{Values: make([]any, len(columns))}
	for i, col := range columns {
		if nulls[i] {
			continue
		}
		v, err := decodeBinaryValue(r, col.Type, col.Flags)
		if err != nil {
			return nil, err
		}
		row.Values[i] = v
	}
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing binary row")
	}
	return row, nil
}

func decodeBinaryValue(r *Reader, typ ColumnType, flags ColumnFlag) (any, error) {
	unsigned := flags&FlagUnsigned != 0
	switch typ {
	case TypeTiny:
		b := r.Byte()
		if unsigned {
			return uint8(b), nil
		}
		return int8(b), nil
	case TypeShort, TypeYear:
		v := r.Uint16()
		if unsigned {
			return v, nil
		}
		return int16(v), nil
	case TypeLong, TypeInt24:
		v := r.Uint32()
		if unsigned {
			return v, nil
		}
		return int32(v), nil
	case TypeLongLong:
		v := r.Uint64()
		if unsigned {
			return v, nil
		}
		return int64(v), nil
	case TypeFloat:
		v := r.Uint32()
		return math.Float32frombits(v), nil
	case TypeDouble:
		v := r.Uint64()
		return math.Float64frombits(v), nil
	case TypeDate, TypeDateTime, TypeTimestamp:
		length := r.Byte()
		return DecodeBinaryDateTime(r, length), nil
	case TypeTime:
		length := r.Byte()
		return DecodeBinaryDuration(r, length), nil
	case TypeDecimal, TypeNewDecimal, TypeVarChar, TypeVarString, TypeString,
		TypeEnum, TypeSet, TypeTinyBlob, TypeMediumBlob, TypeLongBlob, TypeBlob,
		TypeBit, TypeJSON, TypeGeometry:
		v, ok := r.LengthEncodedString()
		if !ok {
			return nil, nil
		}
		return append([]byte(nil), v...), nil
	case TypeNull:
		return nil, nil
	default:
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, gomyerr.New(gomyerr.KindDataConversion, "unsupported column type 0x%02x", byte(typ))
	}
}

// StmtPrepareOk is the successful reply to ComStmtPrepare.
type StmtPrepareOk struct {
	StatementID uint32
	NumColumns  uint16
	NumParams   uint16
	Warnings    uint16
}

// ParseStmtPrepareOk decodes a StmtPrepareOk payload.
func ParseStmtPrepareOk(payload []byte) (*StmtPrepareOk, error) {
	r := NewReader(payload)
	r.Byte() // status, always 0x00
	pkt := &StmtPrepareOk{}
	pkt.StatementID = r.Uint32()
	pkt.NumColumns = r.Uint16()
	pkt.NumParams = r.Uint16()
	r.Byte() // filler
	pkt.Warnings = r.Uint16()
	if err := r.Err(); err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindProtocolFrame, err, "parsing StmtPrepareOk")
	}
	return pkt, nil
}

// Statistics is the plain-text reply to ComStatistics — not OK/ERR framed.
type Statistics struct {
	Text string
}

// ParseStatistics decodes a ComStatistics reply payload.
func ParseStatistics(payload []byte) *Statistics {
	return &Statistics{Text: string(payload)}
}
