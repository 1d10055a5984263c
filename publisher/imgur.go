package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultImgurEndpoint is the anonymous image upload endpoint
const DefaultImgurEndpoint = "https://api.imgur.com/3/image"

// ImgurPublisher uploads cards to imgur anonymously
type ImgurPublisher struct {
	clientID string
	endpoint string
	client   *http.Client
}

type imgurResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// NewImgurPublisher creates a new ImgurPublisher instance.
// An empty endpoint uses DefaultImgurEndpoint.
func NewImgurPublisher(clientID, endpoint string) *ImgurPublisher {
	if endpoint == "" {
		endpoint = DefaultImgurEndpoint
	}
	return &ImgurPublisher{
		clientID: clientID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish implements the Publisher interface
func (p *ImgurPublisher) Publish(ctx context.Context, path string) (string, error) {
	body, contentType, err := imageForm(path)
	if err != nil {
		return "", &PublishError{Backend: "imgur", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return "", &PublishError{Backend: "imgur", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Client-ID "+p.clientID)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &PublishError{Backend: "imgur", Temporary: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		temporary := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", &PublishError{Backend: "imgur", Temporary: temporary, Err: fmt.Errorf("upload returned status code: %d", resp.StatusCode)}
	}

	var parsed imgurResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &PublishError{Backend: "imgur", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !parsed.Success || parsed.Data.Link == "" {
		return "", &PublishError{Backend: "imgur", Err: fmt.Errorf("upload rejected: %v", parsed.Data.Error)}
	}

	return parsed.Data.Link, nil
}

// imageForm builds the multipart body carrying the card file
func imageForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := mw.WriteField("type", "file"); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}
