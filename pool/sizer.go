package pool

import "time"

// sizerSnapshot is one sliding-window observation of pool load, taken
// once per adaptiveInterval tick.
type sizerSnapshot struct {
	utilization    float64
	waitQueueRatio float64
	timeouts       int64
}

const sizerWindow = 10

// adaptiveSizer decides when to grow or shrink a Pool's target capacity
// from a sliding window of recent utilization snapshots, gated by
// consecutive-observation thresholds and a cooldown so a single noisy
// tick cannot thrash the pool size.
type adaptiveSizer struct {
	window []sizerSnapshot

	highStreak int
	lowStreak  int

	lastResize time.Time
	cooldown   time.Duration
}

func newAdaptiveSizer(cooldown time.Duration) *adaptiveSizer {
	return &adaptiveSizer{cooldown: cooldown}
}

func (s *adaptiveSizer) observe(snap sizerSnapshot) {
	s.window = append(s.window, snap)
	if len(s.window) > sizerWindow {
		s.window = s.window[len(s.window)-sizerWindow:]
	}
}

func (s *adaptiveSizer) average() sizerSnapshot {
	if len(s.window) == 0 {
		return sizerSnapshot{}
	}
	var avg sizerSnapshot
	for _, snap := range s.window {
		avg.utilization += snap.utilization
		avg.waitQueueRatio += snap.waitQueueRatio
		avg.timeouts += snap.timeouts
	}
	n := float64(len(s.window))
	avg.utilization /= n
	avg.waitQueueRatio /= n
	return avg
}

// sizeDecision is the outcome of one adaptive-sizer tick: grow/shrink by
// delta connections, or do nothing.
type sizeDecision struct {
	delta int // positive to grow, negative to shrink, 0 for no change
}

// decide applies a fixed threshold table to the latest snapshot plus the
// sliding-window average, returning how many connections to add or
// remove from the pool's target capacity.
func (s *adaptiveSizer) decide(now sizerSnapshot, total, idle, min, max int) sizeDecision {
	if !s.lastResize.IsZero() && time.Since(s.lastResize) < s.cooldown {
		return sizeDecision{}
	}

	// Immediate, single-observation spike: no gating needed.
	if now.utilization > 0.95 || now.waitQueueRatio > 0.25 {
		grow := maxInt(5, total/2)
		return s.clampGrow(grow, total, max)
	}

	avg := s.average()

	if avg.utilization > 0.8 || avg.waitQueueRatio > 0.1 {
		s.highStreak++
		s.lowStreak = 0
		if s.highStreak >= 2 {
			s.highStreak = 0
			grow := maxInt(2, total/5)
			return s.clampGrow(grow, total, max)
		}
		return sizeDecision{}
	}

	if avg.utilization < 0.1 && total > min {
		s.lowStreak++
		s.highStreak = 0
		if s.lowStreak >= 3 {
			s.lowStreak = 0
			shrink := maxInt(2, idle/2)
			return s.clampShrink(shrink, total, min)
		}
		return sizeDecision{}
	}

	if avg.utilization < 0.2 && total > min {
		s.lowStreak++
		s.highStreak = 0
		if s.lowStreak >= 3 {
			s.lowStreak = 0
			shrink := maxInt(1, idle/5)
			return s.clampShrink(shrink, total, min)
		}
		return sizeDecision{}
	}

	s.highStreak = 0
	s.lowStreak = 0
	return sizeDecision{}
}

func (s *adaptiveSizer) clampGrow(delta, total, max int) sizeDecision {
	if max > 0 && total+delta > max {
		delta = max - total
	}
	if delta <= 0 {
		return sizeDecision{}
	}
	s.lastResize = time.Now()
	return sizeDecision{delta: delta}
}

func (s *adaptiveSizer) clampShrink(delta, total, min int) sizeDecision {
	if total-delta < min {
		delta = total - min
	}
	if delta <= 0 {
		return sizeDecision{}
	}
	s.lastResize = time.Now()
	return sizeDecision{delta: -delta}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
