package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// DefaultMaxBodySize bounds a report page; larger responses are rejected, not truncated
const DefaultMaxBodySize = 32 * 1024 * 1024

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	collector   *colly.Collector
	maxBodySize int
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		// The same report is requested again for every card
		colly.AllowURLRevisit(),
		// Status codes are classified in Fetch, not by colly
		colly.ParseHTTPErrorResponse(),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	return &CollyFetcher{
		collector:   c,
		maxBodySize: DefaultMaxBodySize,
	}
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	// Callbacks are registered per request; the clone shares only the HTTP backend
	c := cf.collector.Clone()
	c.Context = ctx
	// One byte over the limit tells a complete page from a cut one
	c.MaxBodySize = cf.maxBodySize + 1

	var body []byte
	var status int

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &FetchError{URL: url, Err: ctxErr}
		}
		return "", &FetchError{URL: url, StatusCode: status, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	if status < 200 || status > 299 {
		return "", &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("unexpected response: %s", http.StatusText(status))}
	}

	if len(body) > cf.maxBodySize {
		return "", &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("response body exceeds %d bytes", cf.maxBodySize)}
	}

	log.Debug().Str("url", url).Int("status", status).Int("bytes", len(body)).Msg("Fetched report")
	return string(body), nil
}
