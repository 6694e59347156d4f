package procscan

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestGopsInspectorFindsSelf(t *testing.T) {
	recs, err := GopsInspector{}.Processes(context.Background(), "")
	if err != nil {
		t.Fatalf("Processes: %v", err)
	}
	self := os.Getpid()
	found := false
	for _, r := range recs {
		if r.PID == self {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("own pid %d not in %d records", self, len(recs))
	}
}

func TestGopsInspectorNameFilter(t *testing.T) {
	recs, err := GopsInspector{}.Processes(context.Background(), "definitely-no-such-process-name")
	if err != nil {
		t.Fatalf("Processes: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("filter should exclude everything, got %d records", len(recs))
	}
}

func TestUnavailableReportsSentinel(t *testing.T) {
	_, err := Unavailable{}.Processes(context.Background(), "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
