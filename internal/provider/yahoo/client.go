// Package yahoo fetches the Yahoo Fantasy Basketball buzz index, the table
// of the day's most added and dropped players.
//
// Requests go through resty with a token bucket limiter so a tight schedule
// never hammers the page.
package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultURL is the NBA buzz index page.
const DefaultURL = "https://basketball.fantasysports.yahoo.com/nba/buzzindex"

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client is the HTTP client for the buzz index page.
type Client struct {
	http    *resty.Client
	url     string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a rate-limited client for url.
func NewClient(url string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		url = DefaultURL
	}
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "text/html"),
		url:     url,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// FetchPage performs a rate-limited GET of the buzz index page.
func (c *Client) FetchPage(ctx context.Context) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	res, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", c.url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("buzz index returned %d: %s", res.StatusCode(), truncate(res.Body(), 200))
	}

	c.logger.Debug("buzz index fetched",
		"status", res.StatusCode(),
		"bytes", len(res.Body()),
		"duration", time.Since(start).Round(time.Millisecond))
	return res.Body(), nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
