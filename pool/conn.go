package pool

import (
	"context"
	"time"

	"github.com/gomy/gomy/client"
	"github.com/gomy/gomy/gomyerr"
)

// PooledConn is one physical connection tracked by a Pool: the live
// *client.Conn plus bookkeeping (id, state, timestamps, use count) needed
// to decide when it should be reused, validated, or retired.
type PooledConn struct {
	id    uint64
	conn  *client.Conn
	state stateCell

	createdAt       time.Time
	lastUsedAt      time.Time
	lastValidatedAt time.Time
	useCount        uint64

	leakTimer *time.Timer
}

// Conn returns the underlying client connection. Callers must not retain
// it past the matching Pool.Release/Remove call.
func (pc *PooledConn) Conn() *client.Conn { return pc.conn }

// ID returns the pool-local identifier assigned at creation.
func (pc *PooledConn) ID() uint64 { return pc.id }

// State reports the connection's current position in the state machine.
func (pc *PooledConn) State() State { return pc.state.load() }

// Age returns how long ago this connection was established.
func (pc *PooledConn) Age() time.Duration { return time.Since(pc.createdAt) }

// IdleTime returns how long this connection has sat unused.
func (pc *PooledConn) IdleTime() time.Duration { return time.Since(pc.lastUsedAt) }

func (pc *PooledConn) isExpired(maxLifetime time.Duration) bool {
	return maxLifetime > 0 && pc.Age() > maxLifetime
}

func (pc *PooledConn) isStale(idleTimeout time.Duration) bool {
	return idleTimeout > 0 && pc.IdleTime() > idleTimeout
}

func (pc *PooledConn) needsValidation(keepaliveInterval time.Duration) bool {
	return keepaliveInterval <= 0 || time.Since(pc.lastValidatedAt) > keepaliveInterval
}

// resetSession reconciles session state to the configuration's defaults
// before a connection re-enters the idle set: autocommit back on, no
// schema stickiness beyond what the pool was configured with, read-only
// off.
func (pc *PooledConn) resetSession(defaultSchema string) error {
	if err := pc.conn.ResetConnection(); err != nil {
		return err
	}
	if defaultSchema != "" && pc.conn.Schema() != defaultSchema {
		return pc.conn.UseDatabase(defaultSchema)
	}
	return nil
}

// validate runs a trivial no-op probe (a ping), bounded by timeout.
func (pc *PooledConn) validate(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- pc.conn.Ping() }()
	select {
	case err := <-done:
		if err != nil {
			return gomyerr.Wrap(gomyerr.KindTimeout, err, "validating pooled connection %d", pc.id)
		}
		pc.lastValidatedAt = time.Now()
		return nil
	case <-time.After(timeout):
		return gomyerr.New(gomyerr.KindTimeout, "validating pooled connection %d: timed out after %s", pc.id, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pc *PooledConn) close() error {
	if pc.leakTimer != nil {
		pc.leakTimer.Stop()
	}
	return pc.conn.Close()
}
