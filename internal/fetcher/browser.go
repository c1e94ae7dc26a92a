package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/types"
)

// BrowserFetcher drives a headless Chromium via Rod. Open hands back a
// live page for scanning; Fetch returns a rendered HTML snapshot.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.BrowserConfig
	fetchCfg *config.FetcherConfig
	proxyMgr *ProxyManager
	logger   *slog.Logger
}

// NewBrowserFetcher launches and connects to a browser.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      &cfg.Browser,
		fetchCfg: &cfg.Fetcher,
		logger:   logger.With("component", "browser_fetcher"),
	}
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		bf.proxyMgr = NewProxyManager(cfg.Proxy.URLs, cfg.Proxy.Rotation, logger)
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "headless", bf.cfg.Headless, "stealth", bf.cfg.Stealth)
	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.cfg.BinPath != "" {
		l = l.Bin(bf.cfg.BinPath)
	}
	if bf.cfg.UserDataDir != "" {
		l = l.UserDataDir(bf.cfg.UserDataDir)
	}
	if bf.cfg.WindowSize != "" {
		l = l.Set("window-size", bf.cfg.WindowSize)
	}
	if bf.proxyMgr != nil {
		if proxyURL := bf.proxyMgr.Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	return l.Launch()
}

func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	if bf.cfg.Stealth {
		page, err := stealth.Page(bf.browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// navigate opens rawURL in a fresh page and waits for the load event.
// Client-rendered cards may still be arriving; the scan wait covers that.
func (bf *BrowserFetcher) navigate(ctx context.Context, rawURL string) (*rod.Page, error) {
	page, err := bf.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	if len(bf.fetchCfg.UserAgents) > 0 {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.fetchCfg.UserAgents[0]})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	p := page.Context(ctx).Timeout(bf.navigateTimeout())
	if err := p.Navigate(rawURL); err != nil {
		_ = page.Close()
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}
	if err := p.WaitLoad(); err != nil {
		bf.logger.Warn("page load wait failed, continuing", "url", rawURL, "error", err)
	}
	return page, nil
}

func (bf *BrowserFetcher) navigateTimeout() time.Duration {
	if bf.cfg.NavigateTimeout <= 0 {
		return 30 * time.Second
	}
	return bf.cfg.NavigateTimeout
}

// Open navigates to rawURL and returns the live page as a card source.
// The caller must Close it.
func (bf *BrowserFetcher) Open(ctx context.Context, rawURL string) (*dom.PageSource, error) {
	page, err := bf.navigate(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return dom.NewPageSource(page, rawURL, bf.logger), nil
}

// Fetch navigates to rawURL, lets the page settle and returns its HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*types.Response, error) {
	start := time.Now()

	page, err := bf.navigate(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Context(ctx).Timeout(bf.navigateTimeout()).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	finalURL := rawURL
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	resp := types.NewSnapshotResponse(finalURL, []byte(html))
	resp.URL = rawURL
	resp.StatusCode = http.StatusOK // Rod doesn't easily expose status codes
	resp.FetchDuration = time.Since(start)

	bf.logger.Debug("browser fetch complete",
		"url", rawURL,
		"final_url", finalURL,
		"size", len(html),
		"duration", resp.FetchDuration,
	)
	return resp, nil
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
