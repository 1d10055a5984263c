package publisher

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactsPath is where the HTTP server exposes the output directory
const ArtifactsPath = "/artifacts/"

// LocalPublisher publishes cards by linking to this server's artifact route.
// The file stays in the output directory and is served from there.
type LocalPublisher struct {
	baseURL string
}

// NewLocalPublisher creates a new LocalPublisher instance
func NewLocalPublisher(baseURL string) *LocalPublisher {
	return &LocalPublisher{baseURL: strings.TrimRight(baseURL, "/")}
}

// Publish implements the Publisher interface
func (p *LocalPublisher) Publish(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &PublishError{Backend: "local", Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", &PublishError{Backend: "local", Err: err}
	}
	if info.IsDir() {
		return "", &PublishError{Backend: "local", Err: fmt.Errorf("%s is a directory", path)}
	}

	return p.baseURL + ArtifactsPath + url.PathEscape(filepath.Base(path)), nil
}
