package statestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/testsupport"
)

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := append([]Option{
		WithBaseURL(server.URL),
		WithFallback(nil),
		WithSleep(func(time.Duration) {}),
	}, opts...)
	client, err := NewClient(cfg, logging.NewNop(), base...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGetReturnsValueAndPresence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/test-account/storage/kv/namespaces/test-namespace/values/feed:news":
			fmt.Fprint(w, `{"items":{}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	client := newTestClient(t, server)

	data, found, err := client.Get(context.Background(), "feed:news")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(data) != `{"items":{}}` {
		t.Fatalf("Get = %q found=%v", data, found)
	}

	_, found, err = client.Get(context.Background(), "feed:missing")
	if err != nil {
		t.Fatalf("Get missing key: %v", err)
	}
	if found {
		t.Fatal("missing key reported present")
	}
}

func TestPutRetriesWithBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var waits []time.Duration
	client := newTestClient(t, server, WithSleep(func(d time.Duration) { waits = append(waits, d) }))

	if err := client.Put(context.Background(), "feed:news", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if len(waits) != 2 {
		t.Fatalf("backoff sleeps = %d, want 2", len(waits))
	}
	// Jittered waits stay within [d/2, 3d/2) of the doubling base delay.
	for i, base := range []time.Duration{putBaseDelay, 2 * putBaseDelay} {
		if waits[i] < base/2 || waits[i] >= base*3/2 {
			t.Fatalf("wait %d = %v outside jitter window for base %v", i, waits[i], base)
		}
	}
}

type recordingFallback struct {
	called bool
	err    error
}

func (f *recordingFallback) Put(_ context.Context, namespaceID, key string, value []byte) error {
	f.called = true
	return f.err
}

func TestPutFallsBackAfterExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fb := &recordingFallback{}
	client := newTestClient(t, server, WithFallback(fb))

	if err := client.Put(context.Background(), "feed:news", []byte("{}")); err != nil {
		t.Fatalf("Put with working fallback: %v", err)
	}
	if !fb.called {
		t.Fatal("fallback never invoked")
	}
}

func TestPutSurfacesErrorWhenAllPathsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fb := &recordingFallback{err: errors.New("wrangler broken too")}
	client := newTestClient(t, server, WithFallback(fb))

	err := client.Put(context.Background(), "feed:news", []byte("{}"))
	if err == nil {
		t.Fatal("expected error when every write path fails")
	}
}

func TestEnsureNamespaceResolvesByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/test-account/storage/kv/namespaces" {
			fmt.Fprint(w, `{"result":[{"id":"ns-123","title":"tts-podcast-state"}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.KV.NamespaceID = ""
	client, err := NewClient(cfg, logging.NewNop(),
		WithBaseURL(server.URL), WithFallback(nil), WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.EnsureNamespace(context.Background()); err != nil {
		t.Fatalf("EnsureNamespace: %v", err)
	}
	if client.namespaceID != "ns-123" {
		t.Fatalf("namespaceID = %q", client.namespaceID)
	}
}

func TestEnsureNamespaceCreatesWhenAbsent(t *testing.T) {
	var created atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"result":[]}`)
		case http.MethodPost:
			created.Store(true)
			fmt.Fprint(w, `{"result":{"id":"ns-new"}}`)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.KV.NamespaceID = ""
	client, err := NewClient(cfg, logging.NewNop(),
		WithBaseURL(server.URL), WithFallback(nil), WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.EnsureNamespace(context.Background()); err != nil {
		t.Fatalf("EnsureNamespace: %v", err)
	}
	if !created.Load() || client.namespaceID != "ns-new" {
		t.Fatalf("namespace not created: created=%v id=%q", created.Load(), client.namespaceID)
	}
}
