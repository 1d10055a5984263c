package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidIdentifier is returned when the report identifier is empty
var ErrInvalidIdentifier = errors.New("please enter a valid identifier")

// Fetcher defines the contract for retrieving a report page
type Fetcher interface {
	// Fetch retrieves the HTML document at url.
	// A successful response with an empty body is not an error.
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError reports a transport failure or a non-2xx response
type FetchError struct {
	URL        string
	StatusCode int // Zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReportURL builds the report address for an identifier.
// The identifier is set as the id query parameter, replacing any existing value.
func ReportURL(base, idParam, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidIdentifier
	}

	parsedURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse report URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("report URL must be http or https, got %q", base)
	}

	query := parsedURL.Query()
	query.Set(idParam, id)
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}
