package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(Options{})
	if p.opts.MaxPages != DefaultMaxPages {
		t.Errorf("max pages = %d", p.opts.MaxPages)
	}
	if p.opts.NavTimeout != DefaultNavTimeout {
		t.Errorf("nav timeout = %s", p.opts.NavTimeout)
	}
	if p.opts.IdleWait != DefaultIdleWait {
		t.Errorf("idle wait = %s", p.opts.IdleWait)
	}
}

func TestRunWithoutBrowser(t *testing.T) {
	p := NewPool(Options{ExecPath: "/nonexistent/chrome"})
	defer p.Close()

	_, err := p.FetchBody(context.Background(), "https://example.com/logo.svg")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRunAfterClose(t *testing.T) {
	p := NewPool(Options{ExecPath: "/nonexistent/chrome"})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := p.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSlotsAreBounded(t *testing.T) {
	p := NewPool(Options{MaxPages: 1})

	release, err := p.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire should wait for a slot, got %v", err)
	}

	got := make(chan struct{})
	go func() {
		r, err := p.acquire(context.Background())
		if err == nil {
			r()
		}
		close(got)
	}()

	release()
	release() // releasing twice must not free a second slot

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("queued caller never got the slot")
	}
}

func TestFetchBodyWithChrome(t *testing.T) {
	if _, err := findChrome(""); err != nil {
		t.Skip("chromium not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><path fill="#000" d="M0 0h10v10H0z"/></svg>`))
	}))
	defer srv.Close()

	p := NewPool(Options{})
	defer p.Close()

	body, err := p.FetchBody(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchBody: %v", err)
	}
	if !strings.Contains(body, "<svg") {
		t.Errorf("expected svg markup, got %q", body)
	}
}
