package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/erkineren/listing-monitor/internal/config"
	"github.com/erkineren/listing-monitor/internal/models"
)

// Fetcher returns the current batch of listings from the target page.
// Every failure is a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Listing, error)
}

// renderFunc loads the target page and returns its markup.
type renderFunc func(ctx context.Context) (string, error)

type pageFetcher struct {
	base    *url.URL
	timeout time.Duration
	render  renderFunc
}

// Fetch bounds rendering and parsing by the configured timeout.
func (f *pageFetcher) Fetch(ctx context.Context) ([]models.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	markup, err := f.render(ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}

	return Parse(markup, f.base)
}

func classify(ctx context.Context, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &FetchError{Reason: ReasonTimeout, Err: err}
	}
	return &FetchError{Reason: ReasonTransport, Err: err}
}

// NewBrowserFetcher renders the target page in headless Chrome and waits
// for cfg.ReadySelector before reading the DOM. The browser process lives
// only for one Fetch call.
func NewBrowserFetcher(cfg *config.Config) (Fetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1440, 900),
	)
	if cfg.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBin))
	}

	render := func(ctx context.Context) (string, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		defer cancelAlloc()

		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()

		var markup string
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(cfg.TargetURL),
			chromedp.WaitReady(cfg.ReadySelector, chromedp.ByQuery),
			chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", cfg.TargetURL, err)
		}
		return markup, nil
	}

	return &pageFetcher{base: base, timeout: cfg.FetchTimeout, render: render}, nil
}

// NewHTTPFetcher downloads the target page without executing scripts.
// It suits server-rendered listing pages and hosts without Chrome.
func NewHTTPFetcher(cfg *config.Config, client *http.Client) (Fetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err)
	}
	if client == nil {
		client = &http.Client{}
	}

	render := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.TargetURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", cfg.UserAgent)
		req.Header.Set("Accept", "text/html")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("get %s: %w", cfg.TargetURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("get %s: unexpected status %s", cfg.TargetURL, resp.Status)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", cfg.TargetURL, err)
		}
		return string(body), nil
	}

	return &pageFetcher{base: base, timeout: cfg.FetchTimeout, render: render}, nil
}

// New picks the fetcher for cfg.FetchMode.
func New(cfg *config.Config) (Fetcher, error) {
	switch cfg.FetchMode {
	case config.FetchHTTP:
		return NewHTTPFetcher(cfg, nil)
	case config.FetchBrowser, "":
		return NewBrowserFetcher(cfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.FetchMode)
	}
}
