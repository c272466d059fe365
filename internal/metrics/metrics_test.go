package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDeployment_IncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(DeploymentsTotal.WithLabelValues("SUCCESSFUL"))
	ObserveDeployment("SUCCESSFUL", 2*time.Second)
	after := testutil.ToFloat64(DeploymentsTotal.WithLabelValues("SUCCESSFUL"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestObserveServiceRestart_IncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(ServiceRestartsTotal.WithLabelValues("RedSignal"))
	ObserveServiceRestart("RedSignal")
	after := testutil.ToFloat64(ServiceRestartsTotal.WithLabelValues("RedSignal"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}
