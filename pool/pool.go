// Package pool implements a connection pool over client.Conn: a strict
// FIFO wait queue, atomic per-connection state transitions, and a set of
// background fibers (housekeeper, keep-alive, adaptive sizer, circuit
// breaker, leak detector).
package pool

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gomy/gomy/client"
	"github.com/gomy/gomy/gomyerr"
	"github.com/gomy/gomy/internal/metrics"
)

// waiter is one blocked Acquire call parked in the FIFO queue. Release
// pops the front element and sends directly into deliver, so exactly one
// goroutine ever observes a given connection — no broadcast wakeup, and
// no re-racing against the idle slice after waking.
type waiter struct {
	deliver chan *PooledConn
}

// Pool hands out authenticated *client.Conn values, reusing them across
// callers under the Idle/Reserved/InUse/Removed state machine in state.go.
type Pool struct {
	cfg    Config
	dial   func(ctx context.Context) (*client.Conn, error)
	logger *slog.Logger
	mx     *metrics.Collector

	mu      sync.Mutex
	conns   map[uint64]*PooledConn
	idle    []*PooledConn
	waiters *list.List // of *waiter
	nextID  uint64
	closed  bool

	breaker *circuitBreaker
	sizer   *adaptiveSizer
	target  int // current adaptive target capacity, clamped to [min, max]

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Pool around dial, which must return a freshly
// authenticated connection ready to serve queries. New does not eagerly
// open MinConnections; the housekeeper does that on its first tick so
// that New itself never blocks on the network.
func New(cfg Config, dial func(ctx context.Context) (*client.Conn, error), mx *metrics.Collector, logger *slog.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if mx == nil {
		mx = metrics.New()
	}

	p := &Pool{
		cfg:     cfg,
		dial:    dial,
		logger:  logger,
		mx:      mx,
		conns:   make(map[uint64]*PooledConn),
		waiters: list.New(),
		target:  cfg.MinConnections,
		breaker: newCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerResetTimeout, cfg.CircuitBreakerMaxResetTimeout, cfg.CircuitBreakerBackoffFactor),
		sizer:   newAdaptiveSizer(cfg.AdaptiveCooldown),
		stopCh:  make(chan struct{}),
	}
	if p.target < 1 {
		p.target = 1
	}

	p.wg.Add(1)
	go p.housekeeper()

	p.wg.Add(1)
	go p.keepAlive()

	if cfg.AdaptiveSizing {
		p.wg.Add(1)
		go p.adaptiveSizerLoop()
	}

	return p
}

// Acquire returns a connection ready for use, blocking in strict FIFO
// order behind any earlier caller if the pool is at capacity.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := time.Now()
	pc, err := p.acquire(ctx)
	p.mx.AcquireDuration(time.Since(start))
	return pc, err
}

func (p *Pool) acquire(ctx context.Context) (*PooledConn, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, gomyerr.New(gomyerr.KindPoolClosed, "pool is closed")
	}

	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !pc.state.compareAndSwap(StateIdle, StateReserved) {
			// Lost the race to keep-alive or the housekeeper; it owns
			// this connection now. Try the next idle entry.
			continue
		}
		p.mu.Unlock()
		return p.claim(ctx, pc)
	}

	if len(p.conns) < p.effectiveMax() {
		if !p.breaker.allow() {
			p.mu.Unlock()
			return nil, gomyerr.New(gomyerr.KindCircuitOpen, "connection creation circuit breaker is open")
		}
		p.mu.Unlock()
		pc, err := p.createAndAuth(ctx)
		if err != nil {
			p.breaker.recordFailure()
			p.mx.SetCircuitBreakerState(int(p.breaker.currentState()))
			return nil, err
		}
		p.breaker.recordSuccess()
		p.mx.SetCircuitBreakerState(int(p.breaker.currentState()))
		pc.state.store(StateInUse)
		p.armLeakDetector(pc)
		return pc, nil
	}

	// Pool is at capacity: enqueue and wait our turn.
	w := &waiter{deliver: make(chan *PooledConn, 1)}
	elem := p.waiters.PushBack(w)
	p.mx.PoolExhausted()
	p.reportGaugesLocked()
	p.mu.Unlock()

	var timeoutCh <-chan time.Time
	if p.cfg.ConnectionTimeout > 0 {
		timer := time.NewTimer(p.cfg.ConnectionTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case pc := <-w.deliver:
		if pc == nil {
			return nil, gomyerr.New(gomyerr.KindPoolClosed, "pool is closed")
		}
		p.armLeakDetector(pc)
		return pc, nil
	case <-timeoutCh:
		p.mu.Lock()
		// list.Remove is a no-op if Release already popped this
		// element; it sends to w.deliver before unlocking p.mu, so the
		// delivery is visible to the check below.
		p.waiters.Remove(elem)
		p.mu.Unlock()
		select {
		case pc := <-w.deliver:
			// Release won the race between our timeout firing and the
			// delivery; honor the handoff instead of dropping it.
			if pc != nil {
				p.armLeakDetector(pc)
				return pc, nil
			}
		default:
		}
		return nil, gomyerr.New(gomyerr.KindTimeout, "acquire timed out after %s", p.cfg.ConnectionTimeout)
	case <-ctx.Done():
		p.mu.Lock()
		p.waiters.Remove(elem)
		p.mu.Unlock()
		select {
		case pc := <-w.deliver:
			if pc != nil {
				p.armLeakDetector(pc)
				return pc, nil
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// claim validates (if needed) and hands out a connection popped from the
// idle set by the caller's own goroutine (not via the wait queue).
func (p *Pool) claim(ctx context.Context, pc *PooledConn) (*PooledConn, error) {
	if pc.isExpired(p.cfg.MaxLifetime) || pc.isStale(p.cfg.IdleTimeout) {
		p.mu.Lock()
		p.discard(pc)
		p.mu.Unlock()
		return p.acquire(ctx)
	}
	if pc.needsValidation(0) {
		if err := pc.validate(ctx, p.cfg.ValidationTimeout); err != nil {
			p.mx.ValidationFailed()
			p.mu.Lock()
			p.discard(pc)
			p.mu.Unlock()
			return p.acquire(ctx)
		}
	}
	pc.state.store(StateInUse)
	pc.useCount++
	return pc, nil
}

// Release returns pc to the idle set, or hands it directly to the oldest
// waiter if one is queued.
func (p *Pool) Release(pc *PooledConn) {
	p.disarmLeakDetector(pc)

	if err := pc.resetSession(p.cfg.DefaultSchema); err != nil {
		p.logger.Warn("pool: session reset failed, discarding connection", "id", pc.id, "error", err)
		p.mu.Lock()
		p.discard(pc)
		p.mu.Unlock()
		return
	}
	pc.lastUsedAt = time.Now()

	p.mu.Lock()
	if p.closed || !pc.state.compareAndSwap(StateInUse, StateIdle) {
		delete(p.conns, pc.id)
		p.mu.Unlock()
		pc.close()
		return
	}

	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		w := front.Value.(*waiter)
		pc.state.store(StateInUse)
		pc.useCount++
		w.deliver <- pc // buffered; sent under p.mu so a timed-out waiter sees it
		p.mu.Unlock()
		return
	}

	p.idle = append(p.idle, pc)
	p.reportGaugesLocked()
	p.mu.Unlock()
}

// Remove takes pc out of service permanently, e.g. after the caller
// observed a fatal server error on it (gomyerr.IsFatal).
func (p *Pool) Remove(pc *PooledConn) {
	p.disarmLeakDetector(pc)
	p.mu.Lock()
	pc.state.store(StateRemoved)
	p.discard(pc)
	p.mu.Unlock()
}

// discard removes pc from the registry and closes it. Callers must hold p.mu.
func (p *Pool) discard(pc *PooledConn) {
	delete(p.conns, pc.id)
	p.reportGaugesLocked()
	go func() {
		pc.close()
		p.mx.ConnectionClosed()
	}()
}

func (p *Pool) createAndAuth(ctx context.Context) (*PooledConn, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.mx.ConnectionCreated()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return nil, gomyerr.New(gomyerr.KindPoolClosed, "pool is closed")
	}
	p.nextID++
	pc := &PooledConn{
		id:              p.nextID,
		conn:            conn,
		createdAt:       time.Now(),
		lastUsedAt:      time.Now(),
		lastValidatedAt: time.Now(),
	}
	p.conns[pc.id] = pc
	p.reportGaugesLocked()
	p.mu.Unlock()
	return pc, nil
}

func (p *Pool) effectiveMax() int {
	if p.cfg.AdaptiveSizing && p.target > 0 {
		if p.cfg.MaxConnections > 0 && p.target > p.cfg.MaxConnections {
			return p.cfg.MaxConnections
		}
		return p.target
	}
	return p.cfg.MaxConnections
}

func (p *Pool) armLeakDetector(pc *PooledConn) {
	if p.cfg.LeakDetectionThreshold <= 0 {
		return
	}
	id := pc.id
	pc.leakTimer = time.AfterFunc(p.cfg.LeakDetectionThreshold, func() {
		p.mx.LeakDetected()
		p.logger.Warn("pool: possible connection leak", "id", id, "threshold", p.cfg.LeakDetectionThreshold)
	})
}

func (p *Pool) disarmLeakDetector(pc *PooledConn) {
	if pc.leakTimer != nil {
		pc.leakTimer.Stop()
		pc.leakTimer = nil
	}
}

// reportGaugesLocked refreshes the live gauges. Callers must hold p.mu.
func (p *Pool) reportGaugesLocked() {
	total := len(p.conns)
	idle := len(p.idle)
	waiting := p.waiters.Len()
	active := total - idle
	p.mx.SetPoolGauges(active, idle, total, waiting)
}

// Stats is a point-in-time snapshot of pool state, served by the
// introspection server's /stats endpoint.
type Stats struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := len(p.conns)
	idle := len(p.idle)
	return Stats{Total: total, Idle: idle, Active: total - idle, Waiting: p.waiters.Len()}
}

// Close drains the pool: it stops background fibers, wakes every queued
// waiter with a closed error, and closes all idle and in-flight
// connections once they are returned, bounded by DrainGracePeriod.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.deliver <- nil
	}
	p.waiters.Init()
	idle := p.idle
	p.idle = nil
	for _, pc := range idle {
		delete(p.conns, pc.id)
	}
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	for _, pc := range idle {
		pc.close()
		p.mx.ConnectionClosed()
	}

	deadline := time.After(p.cfg.DrainGracePeriod)
	for {
		p.mu.Lock()
		remaining := len(p.conns)
		p.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-deadline:
			p.mu.Lock()
			leftover := make([]*PooledConn, 0, len(p.conns))
			for _, pc := range p.conns {
				leftover = append(leftover, pc)
			}
			p.conns = make(map[uint64]*PooledConn)
			p.mu.Unlock()
			for _, pc := range leftover {
				pc.close()
				p.mx.ConnectionClosed()
			}
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}
