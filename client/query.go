package client

import (
	"strings"

	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/protocol"
)

// Query sends sql as a ComQuery and returns a Rows for the first result
// set. If sql contains multiple statements, CLIENT_MULTI_STATEMENTS must
// have been enabled on cfg; Rows.NextResultSet walks the remaining ones.
func (c *Conn) Query(sql string) (*Rows, error) {
	if strings.Contains(sql, "\x00") {
		return nil, gomyerr.New(gomyerr.KindSdkClient, "query text contains a NUL byte")
	}
	c.engine.transport.ResetSequence()
	raw, err := c.engine.transport.Exchange(protocol.EncodeQuery(sql))
	if err != nil {
		return nil, err
	}
	if protocol.IsLocalInfileRequest(raw) {
		return nil, gomyerr.New(gomyerr.KindFeatureUnsupported, "LOCAL INFILE is not supported")
	}
	return c.readResultSetHeader(raw, false, nil)
}

// Exec sends sql as a ComQuery expected to produce no result set (an
// INSERT/UPDATE/DELETE/DDL statement) and returns the server's OK packet.
// If sql actually produces rows, they are drained and discarded.
func (c *Conn) Exec(sql string) (*protocol.OKPacket, error) {
	rows, err := c.Query(sql)
	if err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return &protocol.OKPacket{
		AffectedRows: c.affectedRows,
		LastInsertID: c.lastInsertID,
		StatusFlags:  c.statusFlags,
		Warnings:     c.warnings,
	}, nil
}
