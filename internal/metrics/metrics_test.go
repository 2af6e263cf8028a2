package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	g.Write(m)
	return m.GetGauge().GetValue()
}

func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	c.Write(m)
	return m.GetCounter().GetValue()
}

func TestSetPoolGauges(t *testing.T) {
	c := New()

	c.SetPoolGauges(3, 5, 8, 1)

	if v := getGaugeValue(c.connectionsActive); v != 3 {
		t.Errorf("expected active=3, got %v", v)
	}
	if v := getGaugeValue(c.connectionsIdle); v != 5 {
		t.Errorf("expected idle=5, got %v", v)
	}
	if v := getGaugeValue(c.connectionsTotal); v != 8 {
		t.Errorf("expected total=8, got %v", v)
	}
	if v := getGaugeValue(c.connectionsWaiting); v != 1 {
		t.Errorf("expected waiting=1, got %v", v)
	}

	// A second call replaces, not increments, the gauges.
	c.SetPoolGauges(2, 4, 6, 0)
	if v := getGaugeValue(c.connectionsActive); v != 2 {
		t.Errorf("expected active=2 after update, got %v", v)
	}
}

func TestAcquireDuration(t *testing.T) {
	c := New()

	c.AcquireDuration(5 * time.Millisecond)
	c.AcquireDuration(10 * time.Millisecond)

	families, err := c.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "gomy_pool_acquire_duration_seconds" {
			found = true
			m := f.GetMetric()
			if len(m) == 0 || m[0].GetHistogram().GetSampleCount() != 2 {
				t.Errorf("expected 2 acquire samples, got %+v", m)
			}
		}
	}
	if !found {
		t.Error("acquire duration metric not found")
	}
}

func TestCounters(t *testing.T) {
	c := New()

	c.PoolExhausted()
	c.PoolExhausted()
	c.ValidationFailed()
	c.LeakDetected()
	c.ConnectionCreated()
	c.ConnectionCreated()
	c.ConnectionCreated()
	c.ConnectionClosed()

	if v := getCounterValue(c.poolExhausted); v != 2 {
		t.Errorf("expected poolExhausted=2, got %v", v)
	}
	if v := getCounterValue(c.validationFailed); v != 1 {
		t.Errorf("expected validationFailed=1, got %v", v)
	}
	if v := getCounterValue(c.leaksDetected); v != 1 {
		t.Errorf("expected leaksDetected=1, got %v", v)
	}
	if v := getCounterValue(c.connectionsCreated); v != 3 {
		t.Errorf("expected connectionsCreated=3, got %v", v)
	}
	if v := getCounterValue(c.connectionsClosed); v != 1 {
		t.Errorf("expected connectionsClosed=1, got %v", v)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	c := New()

	c.SetCircuitBreakerState(2)
	if v := getGaugeValue(c.circuitBreakerState); v != 2 {
		t.Errorf("expected state=2, got %v", v)
	}
}

func TestResizeDecided(t *testing.T) {
	c := New()

	c.ResizeDecided(true)
	c.ResizeDecided(true)
	c.ResizeDecided(false)

	grow := getCounterValue(c.sizerResizes.WithLabelValues("grow"))
	shrink := getCounterValue(c.sizerResizes.WithLabelValues("shrink"))
	if grow != 2 {
		t.Errorf("expected grow=2, got %v", grow)
	}
	if shrink != 1 {
		t.Errorf("expected shrink=1, got %v", shrink)
	}
}

func TestNewDoesNotPanicOnMultipleCalls(t *testing.T) {
	// Each call registers against its own private registry, so repeated
	// calls must never collide on prometheus's default registry.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("New() panicked on repeated calls: %v", r)
		}
	}()

	c1 := New()
	c2 := New()

	c1.SetPoolGauges(1, 0, 1, 0)
	c2.SetPoolGauges(2, 0, 2, 0)

	if v := getGaugeValue(c1.connectionsActive); v != 1 {
		t.Errorf("c1 expected active=1, got %v", v)
	}
	if v := getGaugeValue(c2.connectionsActive); v != 2 {
		t.Errorf("c2 expected active=2, got %v", v)
	}
}
