package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teslashibe/go-photobooth/internal/httpc"
)

// AppsScript uploads through a Google Apps Script web app that stores the
// file in Drive and answers with its URL.
//
// Request body:  {"filename", "mimeType", "base64"}
// Response body: {"status": "success"|"error", "fileUrl", "message"}
type AppsScript struct {
	endpoint string
	client   *http.Client
}

// NewAppsScript creates a transport posting to endpoint. A nil client uses
// the shared upload client.
func NewAppsScript(endpoint string, client *http.Client) *AppsScript {
	if client == nil {
		client = httpc.NewClient(httpc.UploadTimeout)
	}
	return &AppsScript{endpoint: endpoint, client: client}
}

type appsScriptRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Base64   string `json:"base64"`
}

type appsScriptResponse struct {
	Status  string `json:"status"`
	FileURL string `json:"fileUrl"`
	Message string `json:"message"`
}

// Upload posts the file and translates the script's answer.
func (a *AppsScript) Upload(ctx context.Context, u Upload) (*UploadResult, error) {
	body, err := json.Marshal(appsScriptRequest{
		Filename: u.Filename,
		MimeType: u.MimeType,
		Base64:   base64.StdEncoding.EncodeToString(u.Payload),
	})
	if err != nil {
		return nil, fmt.Errorf("appsscript: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appsscript: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appsscript: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("appsscript: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Transport: "appsscript"}
	}

	var out appsScriptResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("appsscript: malformed response: %w", err)
	}

	res := &UploadResult{Status: StatusFailure, URL: out.FileURL, Message: out.Message}
	if out.Status == string(StatusSuccess) && out.FileURL != "" {
		res.Status = StatusSuccess
	} else if res.Message == "" {
		res.Message = "failed to get file URL from the upload script"
	}
	return res, nil
}

var _ Transport = (*AppsScript)(nil)
