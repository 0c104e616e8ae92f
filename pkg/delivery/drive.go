package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads straight to Google Drive with a service account and shares
// the file with anyone holding the link.
type Drive struct {
	service  *drive.Service
	folderID string
	logger   *slog.Logger
}

// NewDrive authenticates with service-account JSON limited to files the
// booth creates.
func NewDrive(ctx context.Context, credentialsJSON []byte, folderID string) (*Drive, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("drive: credentials: %w", err)
	}
	return NewDriveWithOptions(ctx, folderID, option.WithCredentials(creds))
}

// NewDriveWithOptions builds the transport from raw client options.
func NewDriveWithOptions(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: service: %w", err)
	}
	return &Drive{
		service:  svc,
		folderID: folderID,
		logger:   slog.Default().With("component", "delivery.drive"),
	}, nil
}

// Upload creates the file, grants public read access and returns its link.
func (d *Drive) Upload(ctx context.Context, u Upload) (*UploadResult, error) {
	meta := &drive.File{Name: u.Filename, MimeType: u.MimeType}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	created, err := d.service.Files.Create(meta).
		Media(bytes.NewReader(u.Payload), googleapi.ContentType(u.MimeType)).
		Fields("id", "webViewLink", "webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, driveError(err)
	}

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := d.service.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
		d.logger.Warn("file uploaded but not shared", "file_id", created.Id, "error", err)
		return &UploadResult{Status: StatusFailure, Message: "file could not be shared"}, nil
	}

	link := created.WebContentLink
	if link == "" {
		link = created.WebViewLink
	}
	if link == "" {
		return &UploadResult{Status: StatusFailure, Message: "drive returned no link"}, nil
	}
	return &UploadResult{Status: StatusSuccess, URL: link}, nil
}

func driveError(err error) error {
	if gerr, ok := err.(*googleapi.Error); ok {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Transport: "drive"}
	}
	return fmt.Errorf("drive: %w", err)
}

var _ Transport = (*Drive)(nil)
