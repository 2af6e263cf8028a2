package pool

import (
	"context"
	"math/rand"
	"time"
)

// housekeeper reconciles the idle set once per MaintenanceInterval: it
// removes aged-out or stale connections and tops the pool back up to
// MinConnections.
func (p *Pool) housekeeper() {
	defer p.wg.Done()

	// Fire once immediately so New doesn't leave the pool empty until
	// the first tick.
	p.reconcile()

	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reconcile()
		case <-p.stopCh:
			return
		}
	}
}

// maxValidationsPerCycle bounds how many idle connections the housekeeper
// probes on a single reconcile pass, so a large idle set never turns one
// maintenance tick into a validation-request storm against the server.
const maxValidationsPerCycle = 5

func (p *Pool) reconcile() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	kept := p.idle[:0]
	var expired []*PooledConn
	var dueForValidation []*PooledConn
	for _, pc := range p.idle {
		if pc.isExpired(p.cfg.MaxLifetime) || pc.isStale(p.cfg.IdleTimeout) {
			if !pc.state.compareAndSwap(StateIdle, StateRemoved) {
				continue
			}
			expired = append(expired, pc)
			continue
		}
		if len(dueForValidation) < maxValidationsPerCycle && pc.needsValidation(p.cfg.KeepaliveTime) {
			dueForValidation = append(dueForValidation, pc)
		}
		kept = append(kept, pc)
	}
	p.idle = kept
	for _, pc := range expired {
		delete(p.conns, pc.id)
	}
	desiredMin := p.cfg.MinConnections
	if p.cfg.AdaptiveSizing && p.target > desiredMin {
		desiredMin = p.target
	}
	deficit := desiredMin - len(p.conns)
	p.reportGaugesLocked()
	p.mu.Unlock()

	for _, pc := range expired {
		pc.close()
		p.mx.ConnectionClosed()
	}

	p.validateIdle(dueForValidation)

	for i := 0; i < deficit; i++ {
		if !p.breaker.allow() {
			break
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
		pc, err := p.createAndAuth(ctx)
		cancel()
		if err != nil {
			p.breaker.recordFailure()
			p.mx.SetCircuitBreakerState(int(p.breaker.currentState()))
			p.logger.Warn("pool: housekeeper failed to top up minimum connections", "error", err)
			break
		}
		p.breaker.recordSuccess()
		p.mx.SetCircuitBreakerState(int(p.breaker.currentState()))
		p.deliverOrIdle(pc)
	}
}

// deliverOrIdle hands a freshly created connection straight to the
// oldest queued waiter if one exists, otherwise idles it. Used by
// background fibers that create connections outside of Acquire's own
// create-on-demand path.
func (p *Pool) deliverOrIdle(pc *PooledConn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		pc.close()
		return
	}
	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		w := front.Value.(*waiter)
		pc.state.store(StateInUse)
		w.deliver <- pc // buffered; sent under p.mu so a timed-out waiter sees it
		p.mu.Unlock()
		return
	}
	pc.state.store(StateIdle)
	p.idle = append(p.idle, pc)
	p.reportGaugesLocked()
	p.mu.Unlock()
}

// keepAlive periodically validates idle connections that have gone too
// long without traffic. The interval is jittered by up to 20% in either
// direction so a fleet of pools started together doesn't converge on
// sending keep-alive probes in lockstep.
func (p *Pool) keepAlive() {
	defer p.wg.Done()

	interval := p.cfg.KeepaliveTime
	timer := time.NewTimer(jitteredInterval(interval))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			p.probeIdle()
			timer.Reset(jitteredInterval(interval))
		case <-p.stopCh:
			return
		}
	}
}

// jitteredInterval returns base adjusted by a random offset in
// [-20%, +20%] of base.
func jitteredInterval(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	maxOffset := int64(base) / 5
	offset := rand.Int63n(2*maxOffset+1) - maxOffset
	return base + time.Duration(offset)
}

func (p *Pool) probeIdle() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	candidates := make([]*PooledConn, 0, len(p.idle))
	for _, pc := range p.idle {
		if pc.needsValidation(p.cfg.KeepaliveTime) {
			candidates = append(candidates, pc)
		}
	}
	p.mu.Unlock()

	p.validateIdle(candidates)
}

// validateIdle probes each candidate, racing Acquire via the atomic state
// CAS so a connection claimed by a caller mid-probe is left alone. A
// connection that fails validation is removed from the pool; one that
// passes is returned to idle. Shared by probeIdle's full sweep and
// reconcile's capped per-cycle sweep.
func (p *Pool) validateIdle(candidates []*PooledConn) {
	for _, pc := range candidates {
		if !pc.state.compareAndSwap(StateIdle, StateReserved) {
			continue // Acquire or another fiber already claimed it
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ValidationTimeout)
		err := pc.validate(ctx, p.cfg.ValidationTimeout)
		cancel()
		if err != nil {
			p.mx.ValidationFailed()
			p.mu.Lock()
			p.removeFromIdleLocked(pc)
			delete(p.conns, pc.id)
			p.reportGaugesLocked()
			p.mu.Unlock()
			pc.close()
			p.mx.ConnectionClosed()
			continue
		}
		if !pc.state.compareAndSwap(StateReserved, StateIdle) {
			// Pool was closed out from under us between validate and here.
			pc.close()
			continue
		}
	}
}

// removeFromIdleLocked drops pc from the idle slice. Callers must hold p.mu.
func (p *Pool) removeFromIdleLocked(pc *PooledConn) {
	for i, c := range p.idle {
		if c == pc {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return
		}
	}
}

// adaptiveSizerLoop drives the sliding-window resize decisions of the
// adaptive sizer, adjusting the pool's target capacity rather than
// connections directly — growth is realized by the housekeeper's next
// top-up pass, shrinkage by letting the idle set drain naturally on its
// next reconcile.
func (p *Pool) adaptiveSizerLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.AdaptiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.adaptiveTick()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) adaptiveTick() {
	p.mu.Lock()
	total := len(p.conns)
	idle := len(p.idle)
	waiting := p.waiters.Len()
	p.mu.Unlock()

	if total == 0 {
		return
	}
	active := total - idle
	snap := sizerSnapshot{
		utilization:    float64(active) / float64(total),
		waitQueueRatio: float64(waiting) / float64(total),
	}
	p.sizer.observe(snap)
	decision := p.sizer.decide(snap, total, idle, p.cfg.MinConnections, p.cfg.MaxConnections)
	if decision.delta == 0 {
		return
	}

	p.mu.Lock()
	p.target += decision.delta
	if p.target < p.cfg.MinConnections {
		p.target = p.cfg.MinConnections
	}
	if p.cfg.MaxConnections > 0 && p.target > p.cfg.MaxConnections {
		p.target = p.cfg.MaxConnections
	}
	p.mu.Unlock()

	p.mx.ResizeDecided(decision.delta > 0)
	p.logger.Info("pool: adaptive sizer resized target capacity", "delta", decision.delta, "target", p.target)

	if decision.delta > 0 {
		p.reconcile()
	}
}
