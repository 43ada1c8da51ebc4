// Package espn reads the ESPN Fantasy Basketball free-agent list.
//
// The page requires a logged-in browser, so fetching goes through a
// BrowserSession; parsing the rendered markup is plain goquery.
package espn

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// BaseURL is the ESPN Fantasy Basketball root.
const BaseURL = "https://fantasy.espn.com/basketball/"

// screenshotQuality must stay 100: chromedp encodes any lower quality as JPEG.
const screenshotQuality = 100

// FreeAgentsURL returns the free-agent page for a league.
func FreeAgentsURL(leagueID string) string {
	return BaseURL + "players/add?leagueId=" + leagueID
}

// Session is the browser surface the free-agent job needs.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Authenticate(ctx context.Context, user, pass string) error
	CurrentPageMarkup(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ExecPath string        // empty = let chromedp find Chrome
	PageWait time.Duration // settle time after navigation and login
	Headless bool
}

// ChromeSession drives a headless Chrome through chromedp.
type ChromeSession struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	wait        time.Duration
	logger      *slog.Logger
}

// NewChromeSession starts a browser. The browser lives until Close, not
// until parent is cancelled; per-call contexts bound each operation.
func NewChromeSession(parent context.Context, opts ChromeOptions, logger *slog.Logger) (*ChromeSession, error) {
	if logger == nil {
		logger = slog.Default()
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 1024),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &ChromeSession{
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		wait:        opts.PageWait,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by ctx.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the page to settle.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating", "url", url)
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.Sleep(s.wait)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Authenticate fills the login overlay: focus the username box, type the
// username, tab to the password, tab to the button and submit.
func (s *ChromeSession) Authenticate(ctx context.Context, user, pass string) error {
	if user == "" || pass == "" {
		return fmt.Errorf("espn credentials are not configured")
	}
	err := s.run(ctx,
		chromedp.MouseClickXY(500, 225),
		chromedp.KeyEvent(user),
		chromedp.KeyEvent(kb.Tab+pass),
		chromedp.KeyEvent(kb.Tab+kb.Enter),
		chromedp.Sleep(s.wait),
	)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// CurrentPageMarkup returns the rendered document.
func (s *ChromeSession) CurrentPageMarkup(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page markup: %w", err)
	}
	return html, nil
}

// Screenshot saves a PNG of the full page to path.
func (s *ChromeSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Close shuts the browser down.
func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// ScreenshotPath names a debug screenshot after the moment it was taken,
// e.g. "screenshots/screenshot 2026-01-10 05-35 PM.png".
func ScreenshotPath(dir string, now time.Time) string {
	return filepath.Join(dir, "screenshot "+now.Format("2006-01-02 03-04 PM")+".png")
}
