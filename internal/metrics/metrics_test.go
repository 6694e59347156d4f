package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestHelpersAfterRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	IncLaunch("ok")
	IncTermination("graceful", "ok")
	IncRestart()
	IncScanCycle()
	IncSnapshotDrop()
	SetRunningProfiles(2)
	RecordStateTransition("stopped", "running")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("no metric families gathered")
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "herdsman_lifecycle_launches_total" {
			found = true
			if mf.GetMetric()[0].GetCounter().GetValue() < 1 {
				t.Fatal("launch counter not incremented")
			}
		}
	}
	if !found {
		t.Fatal("launches_total not gathered")
	}
}
