package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.Set(ctx, "/base/instance 1", "work account"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "/base/instance 1")
	if err != nil || got != "work account" {
		t.Fatalf("Get: %q, %v", got, err)
	}
}

func TestGetMissingKeyIsEmpty(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	got, err := s.Get(context.Background(), "/nope")
	if err != nil || got != "" {
		t.Fatalf("missing key: %q, %v", got, err)
	}
}

func TestSetOverwrites(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	_ = s.Set(ctx, "/k", "old")
	if err := s.Set(ctx, "/k", "new"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ := s.Get(ctx, "/k")
	if got != "new" {
		t.Fatalf("overwrite failed: %q", got)
	}
}

func TestAllAndDelete(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "alias.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	_ = s.Set(ctx, "/a", "one")
	_ = s.Set(ctx, "/b", "two")

	all, err := s.All(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("All: %v, %v", all, err)
	}
	if err := s.Delete(ctx, "/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ = s.All(ctx)
	if len(all) != 1 || all["/b"] != "two" {
		t.Fatalf("after delete: %v", all)
	}
}
