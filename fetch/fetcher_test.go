package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/models"
)

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:          5 * time.Second,
		ProfileBackoff:   time.Millisecond,
		ProfileMemoryTTL: time.Minute,
		Referer:          "https://www.google.com/",
	}
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f := New(testFetchConfig(), DefaultProfiles())
	t.Cleanup(f.Close)
	return f
}

func TestFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carried no User-Agent")
		}
		if r.Header.Get("Accept-Encoding") != "identity" {
			t.Errorf("Accept-Encoding = %q, want identity", r.Header.Get("Accept-Encoding"))
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{})

	if outcome.Page == nil {
		t.Fatalf("Page is nil: status=%s detail=%s", outcome.Status, outcome.Detail)
	}
	if outcome.Page.StatusCode != 200 {
		t.Errorf("StatusCode = %d", outcome.Page.StatusCode)
	}
	if outcome.Page.Profile != "chrome" {
		t.Errorf("Profile = %q, want chrome (first in rotation)", outcome.Page.Profile)
	}
}

func TestFetcher_RotatesOnBlockAndRemembers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{})

	if outcome.Page == nil {
		t.Fatalf("Page is nil: status=%s detail=%s", outcome.Status, outcome.Detail)
	}
	if outcome.Page.Profile != "chrome-legacy" {
		t.Errorf("Profile = %q, want chrome-legacy (second in rotation)", outcome.Page.Profile)
	}
	if remembered := f.memory.Get(hostOf(srv.URL)); remembered != "chrome-legacy" {
		t.Errorf("remembered profile = %q, want chrome-legacy", remembered)
	}

	// The remembered profile goes first next time: exactly one more request.
	before := calls.Load()
	outcome = f.Fetch(context.Background(), srv.URL, Options{})
	if outcome.Page == nil || outcome.Page.Profile != "chrome-legacy" {
		t.Fatalf("second fetch did not reuse remembered profile: %+v", outcome)
	}
	if calls.Load() != before+1 {
		t.Errorf("second fetch made %d requests, want 1", calls.Load()-before)
	}
}

func TestFetcher_AllProfilesBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{})

	if outcome.Page != nil {
		t.Fatal("expected no page")
	}
	if outcome.Status != models.StatusBlocked {
		t.Errorf("Status = %s, want Blocked", outcome.Status)
	}
	if outcome.Detail != "HTTP 403" {
		t.Errorf("Detail = %q, want HTTP 403", outcome.Detail)
	}
}

func TestFetcher_SoftBlockDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Enter the characters you see below</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{})

	if outcome.Status != models.StatusBlocked {
		t.Fatalf("Status = %s, want Blocked", outcome.Status)
	}
	if outcome.Detail != "captcha challenge" {
		t.Errorf("Detail = %q, want captcha challenge", outcome.Detail)
	}
}

func TestFetcher_TransportFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{})

	if outcome.Status != models.StatusError {
		t.Fatalf("Status = %s, want Error", outcome.Status)
	}
	if outcome.Detail != "HTTP 500" {
		t.Errorf("Detail = %q, want HTTP 500", outcome.Detail)
	}
}

func TestFetcher_HeaderOverridesAndCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Extra") != "1" {
			t.Errorf("X-Extra = %q, want 1", r.Header.Get("X-Extra"))
		}
		if r.Header.Get("Cookie") != "session=abc" {
			t.Errorf("Cookie = %q", r.Header.Get("Cookie"))
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	outcome := f.Fetch(context.Background(), srv.URL, Options{
		Headers: map[string]string{"X-Extra": "1"},
		Cookie:  "session=abc",
	})
	if outcome.Page == nil {
		t.Fatalf("Page is nil: %s", outcome.Detail)
	}
}

func TestDetectSoftBlock(t *testing.T) {
	tests := []struct {
		body  string
		label string
		hit   bool
	}{
		{"please VERIFY you are a human to continue", "human verification", true},
		{"we detected unusual traffic from your network", "unusual traffic notice", true},
		{"<html>a perfectly normal page</html>", "", false},
	}
	for _, tt := range tests {
		label, hit := detectSoftBlock(tt.body)
		if hit != tt.hit || label != tt.label {
			t.Errorf("detectSoftBlock(%q) = (%q, %v), want (%q, %v)", tt.body, label, hit, tt.label, tt.hit)
		}
	}
}
