package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/lifecycle"
	mng "github.com/loykin/herdsman/internal/manager"
	"github.com/loykin/herdsman/internal/procscan"
)

type fakeLauncher struct {
	mu     sync.Mutex
	opened []string
}

func (f *fakeLauncher) Launch(exe, workdir string) (int, error) {
	f.mu.Lock()
	f.opened = append(f.opened, workdir)
	n := len(f.opened)
	f.mu.Unlock()
	return 2000 + n, nil
}

type fakeTerminator struct{}

func (fakeTerminator) Terminate(context.Context, int) error              { return nil }
func (fakeTerminator) Kill(context.Context, int) error                   { return nil }
func (fakeTerminator) WaitGone(context.Context, int, time.Duration) bool { return true }

var _ lifecycle.Launcher = (*fakeLauncher)(nil)
var _ lifecycle.Terminator = fakeTerminator{}

func newTestRouter(t *testing.T, n int) (http.Handler, *mng.Manager, *fakeLauncher) {
	t.Helper()
	base := t.TempDir()
	for i := 1; i <= n; i++ {
		dir := filepath.Join(base, "Instance "+string(rune('0'+i)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "app"), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	fl := &fakeLauncher{}
	m := mng.New(mng.Options{
		BaseDir:    base,
		Catalog:    catalog.Options{Candidates: []string{"app"}},
		Inspector:  procscan.Unavailable{},
		Launcher:   fl,
		Terminator: fakeTerminator{},
	})
	if _, err := m.Rescan(); err != nil {
		t.Fatal(err)
	}
	return NewRouter(m, "").Handler(), m, fl
}

func urlQuery(s string) string { return url.QueryEscape(s) }

func doReq(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProfilesList(t *testing.T) {
	h, _, _ := newTestRouter(t, 2)
	w := doReq(t, h, http.MethodGet, "/profiles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var got []mng.ProfileStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Instance 1" || got[0].State != "stopped" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestProfileByKey(t *testing.T) {
	h, m, _ := newTestRouter(t, 1)
	key := m.Profiles(context.Background())[0].Key

	w := doReq(t, h, http.MethodGet, "/profiles/one?key="+urlQuery(key), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = doReq(t, h, http.MethodGet, "/profiles/one?key=relative/path", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("relative key accepted: %d", w.Code)
	}

	w = doReq(t, h, http.MethodGet, "/profiles/one?key="+urlQuery(filepath.Join(key, "..", "other")), "")
	if w.Code == http.StatusOK {
		t.Fatalf("traversal key accepted: %s", w.Body.String())
	}
}

func TestOpenEndpoint(t *testing.T) {
	h, m, fl := newTestRouter(t, 1)
	key := m.Profiles(context.Background())[0].Key

	w := doReq(t, h, http.MethodPost, "/open?key="+urlQuery(key), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res lifecycle.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK || len(fl.opened) != 1 {
		t.Fatalf("open failed: %+v opened=%v", res, fl.opened)
	}

	w = doReq(t, h, http.MethodPost, "/open?key="+urlQuery(filepath.Join(filepath.Dir(key), "missing")), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown key status = %d", w.Code)
	}
}

func TestKillStoppedProfile(t *testing.T) {
	h, m, _ := newTestRouter(t, 1)
	key := m.Profiles(context.Background())[0].Key
	w := doReq(t, h, http.MethodPost, "/kill?key="+urlQuery(key), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res lifecycle.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("killing a stopped profile should be ok: %+v", res)
	}
}

func TestOpenAllEndpoint(t *testing.T) {
	h, _, fl := newTestRouter(t, 3)
	w := doReq(t, h, http.MethodPost, "/open-all?max=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var results []lifecycle.ProfileResult
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || len(fl.opened) != 3 {
		t.Fatalf("results=%d opened=%d, want 3/3", len(results), len(fl.opened))
	}

	w = doReq(t, h, http.MethodPost, "/open-all?max=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad max accepted: %d", w.Code)
	}
}

func TestRescanEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t, 2)
	w := doReq(t, h, http.MethodPost, "/rescan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res countResp
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Profiles != 2 {
		t.Fatalf("rescan resp: %+v", res)
	}
}

func TestScanSettingsRoundtrip(t *testing.T) {
	h, m, _ := newTestRouter(t, 1)

	w := doReq(t, h, http.MethodPut, "/scan", `{"enabled":true,"interval":"50ms","name_filter":"app"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	got := m.ScanSettings()
	if !got.Enabled || got.NameFilter != "app" {
		t.Fatalf("settings not applied: %+v", got)
	}
	if got.Interval != 200*time.Millisecond {
		t.Fatalf("interval not clamped: %v", got.Interval)
	}

	w = doReq(t, h, http.MethodPut, "/scan", `{"interval":"nonsense"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad interval accepted: %d", w.Code)
	}
}

func TestBasePathMounting(t *testing.T) {
	base := t.TempDir()
	m := mng.New(mng.Options{
		BaseDir:   base,
		Catalog:   catalog.Options{Candidates: []string{"app"}},
		Inspector: procscan.Unavailable{},
	})
	h := NewRouter(m, "herdsman/").Handler()
	w := doReq(t, h, http.MethodGet, "/herdsman/profiles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"/":       "",
		"abc":     "/abc",
		"/abc/":   "/abc",
		" /a/b/ ": "/a/b",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Errorf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
