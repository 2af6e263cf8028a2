package client

import (
	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/protocol"
)

// Stmt is a prepared statement bound to one Conn.
// Executing it drives the binary result-set protocol; when the
// connection was configured with UseCursorFetch and the statement
// produces rows, execution opens a server-side cursor fetched
// incrementally by Rows.Next instead of returning the whole result
// set in one ComStmtExecute reply.
type Stmt struct {
	conn       *Conn
	id         uint32
	numParams  uint16
	numColumns uint16
	fetchSize  uint32
	closed     bool
}

// Prepare sends ComStmtPrepare for sql and returns the resulting Stmt.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodeStmtPrepare(sql))
	if err != nil {
		return nil, err
	}
	if protocol.IsErr(raw) {
		pkt, err := protocol.ParseErr(raw)
		if err != nil {
			return nil, err
		}
		return nil, pkt.AsError()
	}
	prep, err := protocol.ParseStmtPrepareOk(raw)
	if err != nil {
		return nil, err
	}

	deprecateEOF := c.engine.caps.Has(protocol.ClientDeprecateEOF)
	for i := uint16(0); i < prep.NumParams; i++ {
		if _, err := c.engine.transport.Exchange(nil); err != nil {
			return nil, err
		}
	}
	if prep.NumParams > 0 && !deprecateEOF {
		if _, err := c.engine.transport.Exchange(nil); err != nil {
			return nil, err
		}
	}
	for i := uint16(0); i < prep.NumColumns; i++ {
		if _, err := c.engine.transport.Exchange(nil); err != nil {
			return nil, err
		}
	}
	if prep.NumColumns > 0 && !deprecateEOF {
		if _, err := c.engine.transport.Exchange(nil); err != nil {
			return nil, err
		}
	}

	stmt := &Stmt{
		conn:       c,
		id:         prep.StatementID,
		numParams:  prep.NumParams,
		numColumns: prep.NumColumns,
		fetchSize:  c.engine.cfg.CursorFetchSize,
	}
	c.statements[stmt.id] = stmt
	return stmt, nil
}

// NumParams reports how many parameters this statement expects.
func (s *Stmt) NumParams() int { return int(s.numParams) }

// Execute binds params and sends ComStmtExecute, returning the Rows for
// the resulting result set (empty for a statement with no SELECT list).
func (s *Stmt) Execute(params []BoundParameter) (*Rows, error) {
	if s.closed {
		return nil, gomyerr.New(gomyerr.KindSdkClient, "statement is closed")
	}
	if len(params) != int(s.numParams) {
		return nil, gomyerr.New(gomyerr.KindSdkClient,
			"statement expects %d parameters, got %d", s.numParams, len(params))
	}

	cursor := protocol.CursorTypeNoCursor
	if s.conn.engine.cfg.UseCursorFetch && s.numColumns > 0 {
		cursor = protocol.CursorTypeReadOnly
	}

	s.conn.engine.transport.ResetSequence()
	raw, err := s.conn.engine.transport.Exchange(
		protocol.EncodeStmtExecute(s.id, cursor, params))
	if err != nil {
		return nil, err
	}
	return s.conn.readResultSetHeader(raw, true, s)
}

// BoundParameter mirrors protocol.BoundParameter, re-exported so callers
// binding parameters do not need to import the protocol package directly.
type BoundParameter = protocol.BoundParameter

// Reset sends ComStmtReset, clearing any long-data buffers and
// re-arming the statement for execution without re-preparing it.
func (s *Stmt) Reset() error {
	s.conn.engine.transport.ResetSequence()
	raw, err := s.conn.engine.transport.Exchange(protocol.EncodeStmtReset(s.id))
	if err != nil {
		return err
	}
	if protocol.IsErr(raw) {
		pkt, err := protocol.ParseErr(raw)
		if err != nil {
			return err
		}
		return pkt.AsError()
	}
	return nil
}

// Close sends ComStmtClose, which the server never acknowledges, and
// releases the statement id.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.conn.statements, s.id)
	s.conn.engine.transport.ResetSequence()
	return s.conn.engine.transport.Session(func(sess *Session) error {
		return sess.Send(protocol.EncodeStmtClose(s.id))
	})
}
