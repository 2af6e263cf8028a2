package client

import "github.com/gomy/gomy/protocol"

// Rows iterates one result set produced by either the text protocol
// (Conn.Query) or the binary protocol (Stmt.Execute).
// A Rows is not safe for concurrent use, and must be fully drained or
// Close'd before its owning Conn is used for anything else — the
// connection is half-duplex and the server will not accept a new
// command while a result set is still in flight.
type Rows struct {
	conn    *Conn
	columns []*protocol.ColumnDefinition
	binary  bool
	stmt    *Stmt // non-nil when this result set is cursor-fetch-capable

	row       *protocol.TextRow
	binaryRow *protocol.BinaryRow

	done         bool
	moreResults  bool
	lastStatus   protocol.ServerStatus
	lastWarnings uint16
}

// readResultSetHeader consumes the first packet of a command reply and
// either completes immediately (OK/ERR) or reads the column-definition
// block that precedes the row stream.
func (c *Conn) readResultSetHeader(raw []byte, binary bool, stmt *Stmt) (*Rows, error) {
	if protocol.IsErr(raw) {
		pkt, err := protocol.ParseErr(raw)
		if err != nil {
			return nil, err
		}
		return nil, pkt.AsError()
	}
	deprecateEOF := c.engine.caps.Has(protocol.ClientDeprecateEOF)
	if protocol.IsOK(raw) {
		ok, err := protocol.ParseOK(raw, deprecateEOF)
		if err != nil {
			return nil, err
		}
		c.applyOK(ok)
		return &Rows{
			conn:        c,
			done:        true,
			lastStatus:  ok.StatusFlags,
			moreResults: ok.StatusFlags&protocol.StatusMoreResultsExists != 0,
		}, nil
	}

	n, err := protocol.ParseColumnCount(raw)
	if err != nil {
		return nil, err
	}
	columns := make([]*protocol.ColumnDefinition, 0, n)
	for i := uint64(0); i < n; i++ {
		colRaw, err := c.engine.transport.Exchange(nil)
		if err != nil {
			return nil, err
		}
		col, err := protocol.ParseColumnDefinition(colRaw)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if !deprecateEOF {
		if _, err := c.engine.transport.Exchange(nil); err != nil {
			return nil, err
		}
	}
	return &Rows{conn: c, columns: columns, binary: binary, stmt: stmt}, nil
}

// Columns returns the result set's column metadata.
func (r *Rows) Columns() []*protocol.ColumnDefinition { return r.columns }

// MoreResults reports whether another result set follows this one, for
// multi-statement queries executed with CLIENT_MULTI_STATEMENTS.
func (r *Rows) MoreResults() bool { return r.moreResults }

// Warnings returns the warning count carried by the terminating
// OK/EOF packet, valid only once Next has returned false.
func (r *Rows) Warnings() uint16 { return r.lastWarnings }

// Next advances to the next row, transparently issuing ComStmtFetch
// requests when this result set is backed by a server-side cursor and
// the current batch is exhausted. It returns false with a nil error
// once the result set is fully drained.
func (r *Rows) Next() (bool, error) {
	var pending []byte
	for {
		if r.done {
			return false, nil
		}
		raw := pending
		pending = nil
		if raw == nil {
			var err error
			raw, err = r.conn.engine.transport.Exchange(nil)
			if err != nil {
				return false, err
			}
		}
		if protocol.IsErr(raw) {
			pkt, err := protocol.ParseErr(raw)
			if err != nil {
				return false, err
			}
			return false, pkt.AsError()
		}

		deprecateEOF := r.conn.engine.caps.Has(protocol.ClientDeprecateEOF)
		var status protocol.ServerStatus
		var warnings uint16
		terminal := false
		switch {
		case deprecateEOF && len(raw) > 0 && raw[0] == 0xfe && len(raw) < protocol.MaxPayloadLen:
			ok, err := protocol.ParseOK(raw, true)
			if err != nil {
				return false, err
			}
			status, warnings, terminal = ok.StatusFlags, ok.Warnings, true
		case !deprecateEOF && protocol.IsEOF(raw):
			eof, err := protocol.ParseEOF(raw)
			if err != nil {
				return false, err
			}
			status, warnings, terminal = eof.StatusFlags, eof.Warnings, true
		}

		if terminal {
			cursorOpen := status&protocol.StatusCursorExists != 0 && status&protocol.StatusLastRowSent == 0
			if r.stmt != nil && cursorOpen {
				r.conn.engine.transport.ResetSequence()
				next, err := r.conn.engine.transport.Exchange(
					protocol.EncodeStmtFetch(r.stmt.id, r.stmt.fetchSize))
				if err != nil {
					return false, err
				}
				pending = next
				continue
			}
			r.finish(status, warnings)
			return false, nil
		}

		if r.binary {
			row, err := protocol.ParseBinaryRow(raw, r.columns)
			if err != nil {
				return false, err
			}
			r.binaryRow = row
		} else {
			row, err := protocol.ParseTextRow(raw, len(r.columns))
			if err != nil {
				return false, err
			}
			r.row = row
		}
		return true, nil
	}
}

// TextRow returns the row most recently produced by Next, for a Rows
// built from Conn.Query.
func (r *Rows) TextRow() *protocol.TextRow { return r.row }

// BinaryRow returns the row most recently produced by Next, for a Rows
// built from Stmt.Execute.
func (r *Rows) BinaryRow() *protocol.BinaryRow { return r.binaryRow }

// NextResultSet advances to the next result set of a multi-statement
// query, if MoreResults reported one. It returns false once no further
// result set follows.
func (r *Rows) NextResultSet() (bool, error) {
	if !r.done || !r.moreResults {
		return false, nil
	}
	raw, err := r.conn.engine.transport.Exchange(nil)
	if err != nil {
		return false, err
	}
	next, err := r.conn.readResultSetHeader(raw, r.binary, r.stmt)
	if err != nil {
		return false, err
	}
	*r = *next
	return true, nil
}

// Close drains any rows the caller abandoned mid-iteration so the
// half-duplex connection is safe to reuse for the next command.
func (r *Rows) Close() error {
	for !r.done {
		if _, err := r.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rows) finish(status protocol.ServerStatus, warnings uint16) {
	r.done = true
	r.lastStatus = status
	r.lastWarnings = warnings
	r.moreResults = status&protocol.StatusMoreResultsExists != 0
	r.conn.statusFlags = status
	r.conn.warnings = warnings
}
