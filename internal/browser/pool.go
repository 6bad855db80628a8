// Package browser owns the shared headless Chrome process used for asset
// fallback fetches, chart screenshots and design rendering.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

var (
	ErrUnavailable = errors.New("headless browser not available")
	ErrClosed      = errors.New("browser pool closed")
)

const (
	DefaultMaxPages   = 1
	DefaultNavTimeout = 12 * time.Second
	DefaultIdleWait   = 2 * time.Second
)

type Options struct {
	// MaxPages caps concurrently open tabs; callers beyond it queue FIFO.
	MaxPages int
	// NavTimeout bounds each unit of work, navigation included.
	NavTimeout time.Duration
	// IdleWait caps how long to wait for networkIdle after load.
	IdleWait time.Duration
	// ExecPath selects the Chrome binary; empty means auto-detect.
	ExecPath string
	// RemoteURL attaches to an already running browser (DevTools websocket
	// URL) instead of launching one.
	RemoteURL string
}

// Pool lazily starts a single browser and hands out page slots.
type Pool struct {
	opts Options
	sem  *semaphore.Weighted

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closed        bool
}

func NewPool(opts Options) *Pool {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = DefaultNavTimeout
	}
	if opts.IdleWait <= 0 {
		opts.IdleWait = DefaultIdleWait
	}
	return &Pool{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.MaxPages)),
	}
}

func findChrome(execPath string) (string, error) {
	if execPath != "" {
		path, err := exec.LookPath(execPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUnavailable, execPath)
		}
		return path, nil
	}
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: chromium not installed", ErrUnavailable)
}

// Available reports whether a local Chrome binary can be found.
func Available() bool {
	_, err := findChrome("")
	return err == nil
}

// start launches the browser on first use.
func (p *Pool) start() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.browserCtx != nil {
		return p.browserCtx, nil
	}

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if p.opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), p.opts.RemoteURL)
	} else {
		path, err := findChrome(p.opts.ExecPath)
		if err != nil {
			return nil, err
		}
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(path),
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: start: %v", ErrUnavailable, err)
	}
	log.Printf("browser: started (max pages %d)", p.opts.MaxPages)

	p.browserCtx = browserCtx
	p.cancelBrowser = cancelBrowser
	p.cancelAlloc = cancelAlloc
	return browserCtx, nil
}

// acquire waits for a free page slot in arrival order.
func (p *Pool) acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { p.sem.Release(1) }) }, nil
}

// Run executes actions in a fresh tab once a slot is free. The tab is closed
// when Run returns, and the work is cut off after NavTimeout or when ctx ends.
func (p *Pool) Run(ctx context.Context, actions ...chromedp.Action) error {
	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	browserCtx, err := p.start()
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, p.opts.NavTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("browser: timed out after %s: %w", p.opts.NavTimeout, err)
		}
		return err
	}
	return nil
}

// NavigateIdle loads url and waits for the network to go quiet, capped at
// the pool's idle wait.
func (p *Pool) NavigateIdle(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}

		idle := make(chan struct{})
		var (
			once    sync.Once
			mu      sync.Mutex
			started bool
		)
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch e.Name {
			case "init":
				started = true
			case "networkIdle":
				if started {
					once.Do(func() { close(idle) })
				}
			}
		})

		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}

		timer := time.NewTimer(p.opts.IdleWait)
		defer timer.Stop()
		select {
		case <-idle:
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// FetchBody navigates to url and returns the serialized document.
func (p *Pool) FetchBody(ctx context.Context, url string) (string, error) {
	var body string
	err := p.Run(ctx,
		p.NavigateIdle(url),
		chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &body),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch %s: %w", url, err)
	}
	return body, nil
}

// Screenshot captures the viewport of url as PNG at the given CSS size and
// device scale.
func (p *Pool) Screenshot(ctx context.Context, url string, width, height int64, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	var buf []byte
	err := p.Run(ctx,
		chromedp.EmulateViewport(width, height, chromedp.EmulateScale(scale)),
		p.NavigateIdle(url),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("browser screenshot %s: %w", url, err)
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancelBrowser != nil {
		p.cancelBrowser()
		p.cancelAlloc()
		log.Printf("browser: stopped")
	}
	return nil
}
