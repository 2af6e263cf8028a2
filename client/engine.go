package client

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"

	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/protocol"
	"github.com/gomy/gomy/protocol/auth"
)

// Engine is the authentication state machine, capability negotiation, and
// command dispatcher for one connection.
type Engine struct {
	cfg       Config
	transport *Transport
	caps      *protocol.Capabilities
	handshake *protocol.InitialHandshake
	logger    *slog.Logger

	activePlugin string // the plugin name actually used to authenticate
}

// Connect dials cfg.Host:cfg.Port, performs the handshake and
// authentication state machine, and returns a ready-to-use Engine.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	transport, err := DialTransport(ctx, "tcp", addr, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	transport.SetTimeouts(cfg.ReadTimeout, cfg.WriteTimeout)

	e := &Engine{cfg: cfg, transport: transport, logger: logger}
	if err := e.authenticate(); err != nil {
		transport.Close()
		return nil, err
	}
	return e, nil
}

// authenticate runs the handshake state machine: Start ->
// HandshakeSent -> (AuthMore | SwitchMethod | Ok | Err).
func (e *Engine) authenticate() error {
	raw, err := e.transport.Exchange(nil)
	if err != nil {
		return gomyerr.Wrap(gomyerr.KindNetwork, err, "reading initial handshake")
	}
	if protocol.IsErr(raw) {
		pkt, perr := protocol.ParseErr(raw)
		if perr != nil {
			return perr
		}
		return pkt.AsError()
	}
	handshake, err := protocol.ParseInitialHandshake(raw)
	if err != nil {
		return err
	}
	e.handshake = handshake

	wanted := e.wantedCapabilities()
	e.caps = protocol.NewCapabilities(wanted)
	if e.cfg.MultiStatements {
		e.caps.Want(protocol.ClientMultiStatements | protocol.ClientMultiResults)
	}
	if e.cfg.Database != "" {
		e.caps.Want(protocol.ClientConnectWithDB)
	}
	if len(e.cfg.ConnectAttrs) > 0 {
		e.caps.Want(protocol.ClientConnectAttrs)
	}
	wantTLS := e.cfg.SSLMode != SSLModeNone
	if wantTLS {
		e.caps.Want(protocol.ClientSSL)
	}
	e.caps.Negotiate(handshake.Capabilities)

	if wantTLS {
		if !e.caps.Has(protocol.ClientSSL) {
			if e.cfg.SSLMode == SSLModeRequired || e.cfg.SSLMode == SSLModeTrusted {
				return gomyerr.New(gomyerr.KindAuthInvalid, "server does not support TLS but SSL mode requires it")
			}
		} else if err := e.upgradeTLS(); err != nil {
			return err
		}
	}

	pluginName := handshake.AuthPluginName
	if e.cfg.AuthPluginOverride != "" {
		pluginName = e.cfg.AuthPluginOverride
	}
	plugin, ok := auth.Resolve(e.cfg.PluginRegistry, pluginName)
	if !ok {
		return gomyerr.New(gomyerr.KindAuthInvalid, "unknown authentication plugin %q", pluginName)
	}
	if plugin.RequiresConfidentiality() && !e.tlsActive() {
		return gomyerr.New(gomyerr.KindAuthInvalid,
			"plugin %q requires a secure transport but TLS is not active", pluginName)
	}
	e.activePlugin = plugin.Name()

	scramble := handshake.Scramble
	authResponse, err := plugin.HashPassword([]byte(e.cfg.Password), scramble)
	if err != nil {
		return gomyerr.Wrap(gomyerr.KindAuthInvalid, err, "hashing password for plugin %q", plugin.Name())
	}

	resp := &protocol.HandshakeResponse{
		Capabilities:   e.caps.Bits(),
		MaxPacketSize:  protocol.MaxPayloadLen,
		Charset:        e.cfg.Charset,
		Username:       e.cfg.User,
		AuthResponse:   authResponse,
		Database:       e.cfg.Database,
		AuthPluginName: plugin.Name(),
		ConnectAttrs:   e.cfg.ConnectAttrs,
	}
	// The frame sequence counter already sits at the right value:
	// InitialHandshake consumed id 0, and — on the TLS path — the
	// SSLRequest sent by upgradeTLS consumed id 1, so HandshakeResponse41
	// naturally lands on id 1 (plaintext) or id 2 (TLS).
	raw, err = e.transport.Exchange(resp.Encode())
	if err != nil {
		return err
	}
	return e.authLoop(plugin, scramble, raw)
}

// authLoop drives the remainder of the state machine after the initial
// HandshakeResponse41 has been sent, handling OK, ERR, AuthSwitchRequest,
// and AuthMoreData.
func (e *Engine) authLoop(plugin auth.Plugin, scramble []byte, raw []byte) error {
	for {
		switch {
		case protocol.IsOK(raw):
			return nil

		case protocol.IsErr(raw):
			pkt, err := protocol.ParseErr(raw)
			if err != nil {
				return err
			}
			return pkt.AsError()

		case protocol.IsAuthMoreData(raw):
			more := protocol.ParseAuthMoreData(raw)
			next, done, err := e.handleAuthMoreData(plugin, scramble, more.Data)
			if err != nil {
				return err
			}
			if done {
				raw = next
				continue
			}
			raw, err = e.transport.Exchange(next)
			if err != nil {
				return err
			}

		case protocol.IsAuthSwitchRequest(raw):
			switchReq, err := protocol.ParseAuthSwitchRequest(raw[1:])
			if err != nil {
				return err
			}
			newPlugin, ok := auth.Resolve(e.cfg.PluginRegistry, switchReq.PluginName)
			if !ok {
				return gomyerr.New(gomyerr.KindAuthInvalid, "unknown authentication plugin %q", switchReq.PluginName)
			}
			if newPlugin.RequiresConfidentiality() && !e.tlsActive() {
				return gomyerr.New(gomyerr.KindAuthInvalid,
					"plugin %q requires a secure transport but TLS is not active", newPlugin.Name())
			}
			plugin = newPlugin
			scramble = switchReq.Scramble
			e.activePlugin = plugin.Name()
			resp, err := plugin.HashPassword([]byte(e.cfg.Password), scramble)
			if err != nil {
				return gomyerr.Wrap(gomyerr.KindAuthInvalid, err, "hashing password for plugin %q", plugin.Name())
			}
			raw, err = e.transport.Exchange(protocol.EncodeAuthSwitchResponse(resp))
			if err != nil {
				return err
			}

		default:
			return gomyerr.New(gomyerr.KindAuthInvalid, "unexpected packet 0x%02x during authentication", firstByte(raw))
		}
	}
}

// handleAuthMoreData implements the caching_sha2_password / sha256_password
// full-auth branches. It returns the next payload to send
// (done=false) or the next payload already received to re-dispatch through
// authLoop (done=true, used for the 1-byte fast_auth_success/"continue"
// cases where no further send is needed before the terminal OK arrives).
func (e *Engine) handleAuthMoreData(plugin auth.Plugin, scramble, data []byte) (next []byte, done bool, err error) {
	name := plugin.Name()
	if name != "caching_sha2_password" && name != "sha256_password" {
		// Other plugins: treat as progress, wait for the next packet.
		raw, err := e.transport.Exchange(nil)
		return raw, true, err
	}

	if len(data) == 1 && data[0] == auth.FastAuthSuccess {
		raw, err := e.transport.Exchange(nil)
		return raw, true, err
	}
	if len(data) != 1 || data[0] != auth.FullAuthRequired {
		return nil, false, gomyerr.New(gomyerr.KindAuthInvalid, "unexpected AuthMoreData payload for plugin %q", name)
	}

	if e.tlsActive() {
		pw := append([]byte(e.cfg.Password), 0)
		return pw, false, nil
	}
	if !e.cfg.AllowPublicKeyRetrieval {
		return nil, false, gomyerr.New(gomyerr.KindAuthInvalid,
			"full authentication required but AllowPublicKeyRetrieval is false and TLS is not active")
	}

	pubKeyRaw, err := e.transport.Exchange([]byte{0x02})
	if err != nil {
		return nil, false, err
	}
	if protocol.IsErr(pubKeyRaw) {
		pkt, perr := protocol.ParseErr(pubKeyRaw)
		if perr != nil {
			return nil, false, perr
		}
		return nil, false, pkt.AsError()
	}
	more := protocol.ParseAuthMoreData(pubKeyRaw)
	pubKey, err := auth.ParsePublicKeyPEM(more.Data)
	if err != nil {
		return nil, false, gomyerr.Wrap(gomyerr.KindAuthInvalid, err, "parsing server public key")
	}
	cipher, err := auth.EncryptPassword([]byte(e.cfg.Password), scramble, pubKey)
	if err != nil {
		return nil, false, gomyerr.Wrap(gomyerr.KindAuthInvalid, err, "RSA-encrypting password")
	}
	return cipher, false, nil
}

func (e *Engine) wantedCapabilities() protocol.CapabilityFlag {
	return protocol.ClientLongPassword |
		protocol.ClientFoundRows |
		protocol.ClientLongFlag |
		protocol.ClientSecureConnection |
		protocol.ClientInteractive |
		protocol.ClientTransactions |
		protocol.ClientPluginAuth |
		protocol.ClientPluginAuthLenencClientData |
		protocol.ClientDeprecateEOF |
		protocol.ClientSessionTrack
}

func (e *Engine) upgradeTLS() error {
	tlsCfg := e.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: e.cfg.Host} //nolint:gosec // InsecureSkipVerify is set explicitly for non-trusted modes below
	} else {
		tlsCfg = tlsCfg.Clone()
	}
	if e.cfg.SSLMode != SSLModeTrusted {
		tlsCfg.InsecureSkipVerify = true
	}
	req := &protocol.SSLRequest{
		Capabilities:  e.caps.Bits(),
		MaxPacketSize: protocol.MaxPayloadLen,
		Charset:       e.cfg.Charset,
	}
	if err := e.transport.Session(func(s *Session) error {
		if err := s.Send(req.Encode()); err != nil {
			return err
		}
		return s.UpgradeTLS(tlsCfg)
	}); err != nil {
		return err
	}
	return nil
}

func (e *Engine) tlsActive() bool {
	return e.transport.IsTLS()
}

// Capabilities returns the connection's frozen negotiated capability set.
func (e *Engine) Capabilities() *protocol.Capabilities { return e.caps }

// Handshake returns the immutable handshake captured on connect.
func (e *Engine) Handshake() *protocol.InitialHandshake { return e.handshake }

// ActivePlugin returns the name of the plugin that authenticated this
// connection.
func (e *Engine) ActivePlugin() string { return e.activePlugin }

// Close sends COM_QUIT and closes the transport. The server does not reply
// to COM_QUIT.
func (e *Engine) Close() error {
	e.transport.ResetSequence()
	_ = e.transport.Session(func(s *Session) error {
		return s.Send(protocol.EncodeQuit())
	})
	return e.transport.Close()
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
