package client

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/protocol"
)

// Transport owns the raw byte stream for one connection: dialing, the
// optional TLS upgrade, read/write deadlines, and the half-duplex
// exchange lock that makes every (send; receive...) pair atomic with
// respect to other goroutines.
type Transport struct {
	mu     sync.Mutex
	conn   net.Conn
	framer *protocol.Framer

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// DialTransport opens a TCP connection to addr. The context governs only
// the dial itself; per-exchange deadlines are applied separately.
func DialTransport(ctx context.Context, network, addr string, dialTimeout time.Duration) (*Transport, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, gomyerr.Wrap(gomyerr.KindNetwork, err, "dialing %s", addr)
	}
	return &Transport{conn: conn, framer: protocol.NewFramer(conn)}, nil
}

// SetTimeouts configures the read/write deadlines applied around every
// send and receive.
func (t *Transport) SetTimeouts(read, write time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = read
	t.writeTimeout = write
}

// ResetSequence starts a new command's sequence numbering at 0, as
// required at the start of every command-phase exchange.
func (t *Transport) ResetSequence() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.framer.ResetSequence()
}

func (t *Transport) sendLocked(payload []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.framer.Send(payload)
}

func (t *Transport) receiveLocked() ([]byte, error) {
	if t.readTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	resp, err := t.framer.Receive()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, gomyerr.Wrap(gomyerr.KindTimeout, err, "reading response")
		}
		return nil, err
	}
	return resp, nil
}

// Exchange performs one locked send-then-receive round trip: the unit of
// atomicity for a request/response pair on this connection. No other
// goroutine can interleave a send on this connection while this call is in
// flight. If payload is nil, only a receive is performed (used by
// multi-packet replies where the caller already sent the request).
func (t *Transport) Exchange(payload []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if payload != nil {
		if err := t.sendLocked(payload); err != nil {
			return nil, err
		}
	}
	return t.receiveLocked()
}

// Session runs fn while holding the exchange lock for an entire multi-packet
// command (e.g. a Query that reads column definitions then rows, or the
// TLS-upgrade handshake which must not be interleaved with any other send),
// so no other goroutine's command can interleave mid-exchange.
func (t *Transport) Session(fn func(s *Session) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&Session{t: t})
}

// Session is the locked handle passed to Transport.Session's callback.
type Session struct {
	t *Transport
}

// Send writes one payload within a held session without reading a reply —
// used for messages the peer does not answer, such as SSLRequest.
func (s *Session) Send(payload []byte) error {
	return s.t.sendLocked(payload)
}

// SendReceive writes payload and returns the next reassembled response
// within a held session.
func (s *Session) SendReceive(payload []byte) ([]byte, error) {
	if err := s.t.sendLocked(payload); err != nil {
		return nil, err
	}
	return s.t.receiveLocked()
}

// Receive reads the next reassembled response within a held session,
// without sending anything first.
func (s *Session) Receive() ([]byte, error) {
	return s.t.receiveLocked()
}

// ResetSequence resets the frame sequence counter from within a held
// session (used before sending the first packet of a new command when the
// caller already holds the lock from a prior step, e.g. AuthSwitchResponse).
func (s *Session) ResetSequence() { s.t.framer.ResetSequence() }

// UpgradeTLS performs the TLS upgrade from within a held session (used by
// the auth state machine immediately after sending SSLRequest). The
// framer's sequence-id counter carries over unchanged; only the byte
// stream changes.
func (s *Session) UpgradeTLS(cfg *tls.Config) error {
	tlsConn := tls.Client(s.t.conn, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return gomyerr.Wrap(gomyerr.KindNetwork, err, "TLS handshake")
	}
	s.t.conn = tlsConn
	s.t.framer.SetReadWriter(tlsConn)
	return nil
}

// IsTLS reports whether the underlying socket is currently a TLS
// connection.
func (t *Transport) IsTLS() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.conn.(*tls.Conn)
	return ok
}

// Close closes the underlying socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}

// LocalAddr and RemoteAddr expose the underlying socket's addresses for
// diagnostics and connect-attribute population.
func (t *Transport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *Transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
