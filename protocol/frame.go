package protocol

import (
	"encoding/binary"
	"io"

	"github.com/gomy/gomy/gomyerr"
)

// MaxPayloadLen is the largest payload a single frame can carry (2^24 - 1).
// A payload of exactly this length signals a continuation frame follows.
const MaxPayloadLen = 1<<24 - 1

// SequenceID is the single unsigned byte MySQL uses to detect reordering
// and desynchronization within one request/response exchange. It wraps
// modulo 256 and resets to 0 at the start of every new command.
type SequenceID struct {
	next byte
}

// Reset sets the sequence back to 0 for a new command.
func (s *SequenceID) Reset() { s.next = 0 }

// Current returns the next sequence id to be sent or expected, without
// advancing it.
func (s *SequenceID) Current() byte { return s.next }

// Advance returns the current id and increments, wrapping modulo 256.
func (s *SequenceID) Advance() byte {
	id := s.next
	s.next++
	return id
}

// Set forces the sequence id, used after reading a server-initiated
// sequence restart (e.g. resuming after AuthSwitchRequest).
func (s *SequenceID) Set(id byte) { s.next = id }

// Framer reassembles and splits MySQL packets on top of a raw byte stream.
// It owns the connection's sequence-id counter; callers never touch frame
// headers directly.
type Framer struct {
	rw  io.ReadWriter
	seq SequenceID
}

// NewFramer wraps rw for frame-level Send/Receive.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{rw: rw}
}

// ResetSequence starts a new command's sequence numbering at 0.
func (f *Framer) ResetSequence() { f.seq.Reset() }

// SetReadWriter swaps the underlying stream, used when the transport
// upgrades to TLS mid-connection. The sequence counter is preserved.
func (f *Framer) SetReadWriter(rw io.ReadWriter) { f.rw = rw }

// Send writes payload as one or more frames, splitting on MaxPayloadLen
// boundaries, with monotonically increasing sequence ids starting from the
// framer's current value. A payload that is an exact multiple of
// MaxPayloadLen (including zero) still terminates with a short frame so the
// peer knows reassembly is complete.
func (f *Framer) Send(payload []byte) error {
	for {
		chunk := payload
		if len(chunk) > MaxPayloadLen {
			chunk = payload[:MaxPayloadLen]
		}
		if err := f.writeFrame(chunk); err != nil {
			return err
		}
		payload = payload[len(chunk):]
		if len(chunk) < MaxPayloadLen {
			return nil
		}
		if len(payload) == 0 {
			// Exact multiple: terminate with an explicit empty frame.
			return f.writeFrame(nil)
		}
	}
}

func (f *Framer) writeFrame(chunk []byte) error {
	header := make([]byte, 4)
	header[0] = byte(len(chunk))
	header[1] = byte(len(chunk) >> 8)
	header[2] = byte(len(chunk) >> 16)
	header[3] = f.seq.Advance()
	if _, err := f.rw.Write(header); err != nil {
		return gomyerr.Wrap(gomyerr.KindNetwork, err, "writing frame header")
	}
	if len(chunk) > 0 {
		if _, err := f.rw.Write(chunk); err != nil {
			return gomyerr.Wrap(gomyerr.KindNetwork, err, "writing frame payload")
		}
	}
	return nil
}

// Receive reads and reassembles the next full payload, advancing the
// expected sequence id by the number of frames consumed. A frame whose
// sequence id does not match the expected value is a fatal protocol error.
func (f *Framer) Receive() ([]byte, error) {
	var payload []byte
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(f.rw, header); err != nil {
			return nil, gomyerr.Wrap(gomyerr.KindNetwork, err, "reading frame header")
		}
		length := binary.LittleEndian.Uint32([]byte{header[0], header[1], header[2], 0})
		gotSeq := header[3]
		wantSeq := f.seq.Advance()
		if gotSeq != wantSeq {
			return nil, gomyerr.New(gomyerr.KindProtocolFrame,
				"sequence id mismatch: got %d want %d", gotSeq, wantSeq)
		}
		if length > 0 {
			chunk := make([]byte, length)
			if _, err := io.ReadFull(f.rw, chunk); err != nil {
				return nil, gomyerr.Wrap(gomyerr.KindNetwork, err, "reading frame payload")
			}
			payload = append(payload, chunk...)
		}
		if length < MaxPayloadLen {
			return payload, nil
		}
		// length == MaxPayloadLen: a continuation frame is expected.
	}
}
