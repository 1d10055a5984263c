package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CredentialsEnv holds service account JSON when no credentials file is configured
const CredentialsEnv = "GOOGLE_DRIVE_CREDENTIALS"

// DrivePublisher uploads cards to a Google Drive folder and shares them publicly
type DrivePublisher struct {
	service  *drive.Service
	folderID string
}

// NewDrivePublisher creates a Drive publisher authenticated as a service account.
// folder may be a folder ID or a folder URL.
func NewDrivePublisher(ctx context.Context, credentialsPath, folder string) (*DrivePublisher, error) {
	credsJSON, err := loadCredentials(credentialsPath)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx,
		option.WithCredentialsJSON(credsJSON),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DrivePublisher{
		service:  service,
		folderID: ExtractFolderID(folder),
	}, nil
}

// loadCredentials reads service account JSON from a file or CredentialsEnv
func loadCredentials(credentialsPath string) ([]byte, error) {
	var credsJSON []byte

	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		credsEnv := strings.TrimSpace(os.Getenv(CredentialsEnv))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: %s environment variable is empty or not set", CredentialsEnv)
		}
		log.Debug().Int("bytes", len(credsEnv)).Msgf("Reading credentials from %s", CredentialsEnv)
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	return credsJSON, nil
}

// Publish implements the Publisher interface
func (p *DrivePublisher) Publish(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &PublishError{Backend: "drive", Err: err}
	}
	defer f.Close()

	file := &drive.File{
		Name:     filepath.Base(path),
		MimeType: "image/png",
	}
	if p.folderID != "" {
		file.Parents = []string{p.folderID}
	}

	created, err := p.service.Files.Create(file).Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", driveError(err)
	}

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := p.service.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
		return "", driveError(err)
	}

	log.Debug().Str("file_id", created.Id).Msg("Uploaded card to Drive")
	return ViewURL(created.Id), nil
}

// driveError marks server-side and rate-limit failures as temporary
func driveError(err error) *PublishError {
	temporary := true
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		temporary = gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		temporary = false
	}
	return &PublishError{Backend: "drive", Temporary: temporary, Err: err}
}

// ViewURL returns a direct link that renders the file as an image
func ViewURL(fileID string) string {
	return "https://drive.google.com/uc?export=view&id=" + fileID
}

// ExtractFolderID extracts the folder ID from a Google Drive folder URL.
// Anything that does not look like a folder URL is returned trimmed.
func ExtractFolderID(folder string) string {
	// https://drive.google.com/drive/folders/FOLDER_ID
	// https://drive.google.com/drive/u/0/folders/FOLDER_ID?usp=sharing
	parts := strings.Split(folder, "/folders/")
	if len(parts) < 2 {
		return strings.TrimSpace(folder)
	}

	idPart := parts[1]
	if idx := strings.IndexAny(idPart, "/?#"); idx != -1 {
		idPart = idPart[:idx]
	}
	return strings.TrimSpace(idPart)
}
