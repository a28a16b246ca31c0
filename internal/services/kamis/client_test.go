package kamis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"agri-price-tracker/internal/logger"
)

func newTestClient(cfg ClientConfig) (*Client, *[]time.Duration) {
	waits := &[]time.Duration{}
	c := NewClient(cfg, logger.Discard())
	c.SetSleep(func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	})
	return c, waits
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("action") != "dailySalesList" {
			t.Errorf("action param not forwarded: %q", r.URL.RawQuery)
		}
		w.Write([]byte("<document/>"))
	}))
	defer srv.Close()

	c, waits := newTestClient(DefaultClientConfig())
	resp, err := c.Request(context.Background(), srv.URL, map[string]string{"action": "dailySalesList"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Attempts != 3 || atomic.LoadInt32(&hits) != 3 {
		t.Errorf("attempts = %d, hits = %d, want 3", resp.Attempts, hits)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, (*waits)[i], want[i])
		}
	}
	if string(resp.Body) != "<document/>" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestRequestClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, waits := newTestClient(DefaultClientConfig())
	_, err := c.Request(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrClient) {
		t.Fatalf("err = %v, want ErrClient", err)
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.StatusCode != http.StatusNotFound || ferr.Attempts != 1 {
		t.Errorf("unexpected error detail: %+v", ferr)
	}
	if atomic.LoadInt32(&hits) != 1 || len(*waits) != 0 {
		t.Errorf("hits = %d, waits = %v, want a single attempt and no wait", hits, *waits)
	}
}

func TestRequestGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, waits := newTestClient(DefaultClientConfig())
	_, err := c.Request(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrServer) {
		t.Fatalf("err = %v, want ErrServer", err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
	if len(*waits) != 2 {
		t.Errorf("waits = %v, want no wait after the last attempt", *waits)
	}
}

func TestRequestConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, waits := newTestClient(DefaultClientConfig())
	_, err := c.Request(context.Background(), url, nil)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if len(*waits) != 2 {
		t.Errorf("waits = %v, want 2", *waits)
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxAttempts = 2
	c, _ := newTestClient(cfg)

	_, err := c.Request(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestBackoff(t *testing.T) {
	c := NewClient(ClientConfig{BackoffBase: 3, BackoffUnit: 100 * time.Millisecond}, logger.Discard())
	if got := c.Backoff(2); got != 900*time.Millisecond {
		t.Errorf("Backoff(2) = %v, want 900ms", got)
	}
}
