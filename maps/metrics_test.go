package maps

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"house-finder/config"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetricsRecordGatewayAndLookups(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	b := newStubBackend()
	b.failFirst = 1
	b.geocode["Bank"] = []GeocodeResult{{}}
	creds, _ := config.NewCredentials("k1", "k2")
	gw, err := NewGateway(creds, b.factory, GatewayOptions{Metrics: m})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	l := NewLookups(gw, newTestCache(t), LookupOptions{Metrics: m})

	for i := 0; i < 2; i++ {
		if _, err := l.LatLng.Find(context.Background(), "Bank"); err != nil {
			t.Fatalf("Find: %v", err)
		}
	}

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{MetricCredentialRotationsTotal, nil, 1},
		{MetricProviderCallsTotal, map[string]string{"operation": "geocode", "status": callStatusQuota}, 1},
		{MetricProviderCallsTotal, map[string]string{"operation": "geocode", "status": callStatusOK}, 1},
		{MetricLookupsTotal, map[string]string{"lookup": opLatLng, "result": lookupMiss}, 1},
		{MetricLookupsTotal, map[string]string{"lookup": opLatLng, "result": lookupHit}, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, reg, c.name, c.labels); got != c.want {
			t.Errorf("%s%v: got %v, want %v", c.name, c.labels, got, c.want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncProviderCall("geocode", callStatusOK)
	m.IncRotation()
	m.IncLookup(opLatLng, lookupHit)
}
