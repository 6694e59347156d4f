package herdsman

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeProfileTree(t *testing.T, names ...string) string {
	t.Helper()
	base := t.TempDir()
	for _, n := range names {
		dir := filepath.Join(base, n)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "app"), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func testConfig(t *testing.T, base string) *Config {
	t.Helper()
	c := DefaultConfig()
	c.BaseDir = base
	c.Catalog.Candidates = []string{"app"}
	c.Catalog.Prefix = ""
	c.NameFilter = ""
	c.Normalize()
	return c
}

func TestNewAndRescan(t *testing.T) {
	base := writeProfileTree(t, "Instance 2", "Instance 1", "Instance 10")
	s, err := New(testConfig(t, base), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	n, err := s.Rescan()
	if err != nil || n != 3 {
		t.Fatalf("rescan: n=%d err=%v", n, err)
	}
	ps := s.Profiles(context.Background())
	if ps[0].Name != "Instance 1" || ps[1].Name != "Instance 2" || ps[2].Name != "Instance 10" {
		t.Fatalf("ordering wrong: %+v", ps)
	}
}

func TestTerminateStoppedIsOK(t *testing.T) {
	base := writeProfileTree(t, "Instance 1")
	s, err := New(testConfig(t, base), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.Rescan(); err != nil {
		t.Fatal(err)
	}
	key := s.Profiles(context.Background())[0].Key
	res, err := s.Terminate(context.Background(), key, false)
	if err != nil || !res.OK {
		t.Fatalf("terminate stopped: res=%+v err=%v", res, err)
	}
}

func TestAliasRoundTripThroughSQLite(t *testing.T) {
	base := writeProfileTree(t, "Instance 1")
	c := testConfig(t, base)
	c.Alias.SQLitePath = filepath.Join(t.TempDir(), "alias.db")
	s, err := New(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.Rescan(); err != nil {
		t.Fatal(err)
	}
	key := s.Profiles(context.Background())[0].Key
	if err := s.SetAlias(context.Background(), key, "main account"); err != nil {
		t.Fatal(err)
	}
	p, err := s.Profile(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if p.Alias != "main account" {
		t.Fatalf("alias = %q", p.Alias)
	}
}

func TestScanSettingsClamp(t *testing.T) {
	base := writeProfileTree(t, "Instance 1")
	s, err := New(testConfig(t, base), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	s.UpdateScan(ScanSettings{Enabled: true, Interval: 50 * time.Millisecond})
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()
	// the published value keeps the raw setting; clamping happens per cycle
	if got := s.ScanSettings(); !got.Enabled {
		t.Fatalf("settings lost: %+v", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	base := writeProfileTree(t, "Instance 1")
	s, err := New(testConfig(t, base), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
