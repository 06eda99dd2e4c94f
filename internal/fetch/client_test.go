package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubCache struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (c *stubCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *stubCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions(attempts uint64) Options {
	return Options{
		Attempts:        attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("unexpected user agent %q", got)
		}
		_, _ = w.Write([]byte("apnic|JP|ipv4|1.2.3.0|256|20200101|allocated\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(5))
	text, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "apnic|JP|ipv4|1.2.3.0|256|20200101|allocated\n" {
		t.Fatalf("unexpected body %q", text)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestFetchGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(4))
	_, err := client.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *statusError
	if !errors.As(err, &statusErr) || statusErr.code != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 calls, got %d", calls.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(5))
	if _, err := client.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestFetchRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(3))
	if _, err := client.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestFetchStopsOnCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(10))
	_, err := client.Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFetchSharedDownloadSurvivesCallerCancel(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(1))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := client.Fetch(firstCtx, srv.URL)
		first <- err
	}()
	<-entered

	type result struct {
		text string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		text, err := client.Fetch(context.Background(), srv.URL)
		second <- result{text, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled for the canceled caller, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("expected no error for the other caller, got %v", res.err)
		}
		if res.text != "body" {
			t.Fatalf("unexpected body %q", res.text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Attempts != 10 || opts.InitialInterval != time.Second || opts.MaxInterval != 2*time.Minute {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestFetchUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	cache := newStubCache()
	client := NewClient(srv.Client(), testLogger(), cache, fastOptions(1))

	for range 3 {
		text, err := client.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if text != "fresh" {
			t.Fatalf("unexpected body %q", text)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one download, got %d", calls.Load())
	}
	if cache.values[srv.URL] != "fresh" {
		t.Fatalf("expected cached body, got %q", cache.values[srv.URL])
	}
}

func TestFetchFallsBackWhenCacheFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	cache := newStubCache()
	cache.getErr = errors.New("redis down")
	client := NewClient(srv.Client(), testLogger(), cache, fastOptions(1))

	text, err := client.Fetch(context.Background(), srv.URL)
	if err != nil || text != "fresh" {
		t.Fatalf("expected fresh body, got %q, %v", text, err)
	}
}

func TestFetchAllKeepsOrderAndDropsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/afrinic", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("afrinic"))
	})
	mux.HandleFunc("/lacnic", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/apnic", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("apnic"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	urls := []string{srv.URL + "/apnic", srv.URL + "/lacnic", srv.URL + "/afrinic"}
	client := NewClient(srv.Client(), testLogger(), nil, fastOptions(2))
	sources := client.FetchAll(context.Background(), urls)

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != urls[0] || sources[0].Text != "apnic" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Name != urls[2] || sources[1].Text != "afrinic" {
		t.Fatalf("unexpected second source: %+v", sources[1])
	}
}

func TestFetchAllEmpty(t *testing.T) {
	client := NewClient(nil, testLogger(), nil, fastOptions(1))
	if sources := client.FetchAll(context.Background(), nil); len(sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(sources))
	}
}
