package feed

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_RegisterAndGather(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.IncPages()
	m.IncPages()
	m.IncPageErrors()
	m.AddSponsoredDropped(3)
	m.AddSponsoredDropped(0) // no-op
	m.ObservePageDuration(0.02)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	counters := []struct {
		name string
		want float64
	}{
		{MetricFeedPagesTotal, 2},
		{MetricFeedPageErrorsTotal, 1},
		{MetricFeedSponsoredDropped, 3},
	}
	for _, c := range counters {
		mf, ok := byName[c.name]
		if !ok {
			t.Fatalf("metric %s not gathered", c.name)
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	mf, ok := byName[MetricFeedPageDuration]
	if !ok {
		t.Fatal("duration histogram not gathered")
	}
	if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("duration sample count = %d, want 1", got)
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
