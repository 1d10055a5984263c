package fetcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// RodFetcher implements the Fetcher interface using rod (headless browser).
// Use it when the report table is built by JavaScript.
type RodFetcher struct {
	browser *rod.Browser
	timeout time.Duration
}

// NewRodFetcher launches a headless browser and connects to it
func NewRodFetcher(timeout time.Duration) (*RodFetcher, error) {
	// Mount BOT_DATA_DIR as a volume to keep the profile on disk instead of memory
	userDataDir := os.Getenv("BOT_DATA_DIR")
	if userDataDir == "" {
		userDataDir = "/tmp/rank-card-data"
	}
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		log.Warn().Err(err).Str("dir", userDataDir).Msg("Failed to create browser data directory, using default profile")
		userDataDir = ""
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false). // Disable leakless to avoid antivirus issues
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("mute-audio")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	// Prefer an installed Chrome/Chromium over downloading one
	if path, found := launcher.LookPath(); found {
		l = l.Bin(path)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodFetcher{
		browser: browser,
		timeout: timeout,
	}, nil
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	if rf.browser != nil {
		return rf.browser.Close()
	}
	return nil
}

// Fetch implements the Fetcher interface.
// The browser does not expose the HTTP status, so only navigation failures are reported.
func (rf *RodFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if rf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rf.timeout)
		defer cancel()
	}

	page, err := rf.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to create page: %w", err)}
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to navigate: %w", err)}
	}
	if err := page.WaitLoad(); err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to load: %w", err)}
	}

	// Give scripts a chance to build the table
	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Report page did not stabilize, continuing anyway")
	}

	html, err := page.HTML()
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to get HTML: %w", err)}
	}

	return html, nil
}
