package pool

import "sync/atomic"

// State is a PooledConn's position in the Idle/Reserved/InUse/Removed
// state machine.
type State int32

const (
	// StateIdle means the connection sits in the pool's idle set,
	// available to be handed out.
	StateIdle State = iota
	// StateReserved is the transient state a connection occupies while
	// being claimed out of the idle set — either by Acquire, the
	// keep-alive executor, or the housekeeper — before it is validated
	// and handed to a caller or returned to Idle.
	StateReserved
	// StateInUse means a caller currently owns the connection.
	StateInUse
	// StateRemoved means the connection has failed validation or aged
	// out and must not be returned to the pool; Release will close it.
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReserved:
		return "reserved"
	case StateInUse:
		return "in_use"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State { return State(c.v.Load()) }

func (c *stateCell) store(s State) { c.v.Store(int32(s)) }

// compareAndSwap performs an atomic Idle<->Reserved (or any) transition
// for connection-state changes that happen outside the pool mutex, e.g.
// the keep-alive executor racing Acquire for the same idle connection.
func (c *stateCell) compareAndSwap(old, new State) bool {
	return c.v.CompareAndSwap(int32(old), int32(new))
}
