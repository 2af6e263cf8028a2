package client

import (
	"context"
	"log/slog"

	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/protocol"
	"github.com/gomy/gomy/protocol/auth"
)

// Conn is one authenticated connection: the Engine plus the mutable
// session state the server tracks alongside it.
// A Conn is not safe for concurrent use by multiple goroutines — the
// pool never hands the same Conn to two callers at once.
type Conn struct {
	engine *Engine
	logger *slog.Logger

	schema      string
	autocommit  bool
	statusFlags protocol.ServerStatus

	lastInsertID uint64
	affectedRows uint64
	warnings     uint16

	statements map[uint32]*Stmt
}

// Dial opens a new authenticated connection per cfg.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Conn, error) {
	engine, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		engine:     engine,
		logger:     logger,
		schema:     cfg.Database,
		autocommit: true,
		statements: make(map[uint32]*Stmt),
	}
	return c, nil
}

// Capabilities returns the negotiated, frozen capability set.
func (c *Conn) Capabilities() *protocol.Capabilities { return c.engine.Capabilities() }

// Schema returns the currently selected default database, mirroring the
// server's session state as last observed via InitDB or a status flag.
func (c *Conn) Schema() string { return c.schema }

// Autocommit reports this connection's last-known autocommit state.
func (c *Conn) Autocommit() bool { return c.autocommit }

// InTransaction reports whether the server last indicated an open
// transaction via SERVER_STATUS_IN_TRANS.
func (c *Conn) InTransaction() bool {
	return c.statusFlags&protocol.StatusInTrans != 0
}

// LastInsertID returns the auto-increment id generated by the most
// recent successful command, or 0 if none was generated.
func (c *Conn) LastInsertID() uint64 { return c.lastInsertID }

// AffectedRows returns the row count reported by the most recent
// successful non-SELECT command.
func (c *Conn) AffectedRows() uint64 { return c.affectedRows }

// Ping sends ComPing and returns any error the server reports.
func (c *Conn) Ping() error {
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodePing())
	if err != nil {
		return err
	}
	ok, err := c.readOK(raw)
	if err != nil {
		return err
	}
	c.applyOK(ok)
	return nil
}

// UseDatabase sends ComInitDB to change the connection's default schema.
func (c *Conn) UseDatabase(schema string) error {
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodeInitDB(schema))
	if err != nil {
		return err
	}
	ok, err := c.readOK(raw)
	if err != nil {
		return err
	}
	c.applyOK(ok)
	c.schema = schema
	return nil
}

// Statistics sends ComStatistics and returns the server's human-readable
// status line.
func (c *Conn) Statistics() (string, error) {
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodeStatistics())
	if err != nil {
		return "", err
	}
	return protocol.ParseStatistics(raw).Text, nil
}

// ResetConnection sends ComResetConnection, which clears session state
// (transactions, prepared statements, temp tables) while keeping the
// authenticated identity and TLS channel.
func (c *Conn) ResetConnection() error {
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodeResetConnection())
	if err != nil {
		return err
	}
	ok, err := c.readOK(raw)
	if err != nil {
		return err
	}
	c.applyOK(ok)
	c.autocommit = true
	for id := range c.statements {
		delete(c.statements, id)
	}
	return nil
}

// ChangeUser re-authenticates the connection as a different user without
// reopening the TCP socket.
func (c *Conn) ChangeUser(username, password, schema string) error {
	plugin, ok := auth.Resolve(c.engine.cfg.PluginRegistry, c.engine.ActivePlugin())
	if !ok {
		return gomyerr.New(gomyerr.KindAuthInvalid, "change user: plugin %q unavailable", c.engine.ActivePlugin())
	}
	scramble := c.engine.Handshake().Scramble
	authResponse, err := plugin.HashPassword([]byte(password), scramble)
	if err != nil {
		return gomyerr.Wrap(gomyerr.KindAuthInvalid, err, "hashing password for change user")
	}
	req := &protocol.ChangeUserRequest{
		Username:     username,
		AuthResponse: authResponse,
		Database:     schema,
		Charset:      c.engine.cfg.Charset,
		AuthPlugin:   plugin.Name(),
		ConnectAttrs: c.engine.cfg.ConnectAttrs,
	}
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(req.Encode(c.engine.caps.Bits()))
	if err != nil {
		return err
	}
	if err := c.engine.authLoop(plugin, scramble, raw); err != nil {
		return err
	}
	c.schema = schema
	c.autocommit = true
	for id := range c.statements {
		delete(c.statements, id)
	}
	return nil
}

// Close sends COM_QUIT and releases the underlying socket.
func (c *Conn) Close() error {
	return c.engine.Close()
}

// readOK reads a generic command reply, translating an ERR_Packet into
// the shared error taxonomy.
func (c *Conn) readOK(raw []byte) (*protocol.OKPacket, error) {
	if protocol.IsErr(raw) {
		pkt, err := protocol.ParseErr(raw)
		if err != nil {
			return nil, err
		}
		return nil, pkt.AsError()
	}
	return protocol.ParseOK(raw, c.engine.caps.Has(protocol.ClientDeprecateEOF))
}

// applyOK mirrors a command reply's status flags and counters into the
// connection's session-state snapshot.
func (c *Conn) applyOK(ok *protocol.OKPacket) {
	c.statusFlags = ok.StatusFlags
	c.autocommit = ok.StatusFlags&protocol.StatusAutocommit != 0
	c.lastInsertID = ok.LastInsertID
	c.affectedRows = ok.AffectedRows
	c.warnings = ok.Warnings
}
