package delivery_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/teslashibe/go-photobooth/pkg/delivery"
)

func TestAppsScript_Upload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"status":"success","fileUrl":"https://drive.example/file/abc"}`))
	}))
	defer srv.Close()

	tr := delivery.NewAppsScript(srv.URL, srv.Client())
	res, err := tr.Upload(context.Background(), delivery.Upload{
		Filename: "strip.jpg",
		MimeType: "image/jpeg",
		Payload:  []byte("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != delivery.StatusSuccess || res.URL != "https://drive.example/file/abc" {
		t.Errorf("result = %+v", res)
	}
	if got["filename"] != "strip.jpg" || got["mimeType"] != "image/jpeg" {
		t.Errorf("request = %v", got)
	}
	if got["base64"] != base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")) {
		t.Errorf("base64 = %q", got["base64"])
	}
}

func TestAppsScript_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus delivery.Status
	}{
		{"script error", 200, `{"status":"error","message":"Drive quota"}`, false, delivery.StatusFailure},
		{"success without url", 200, `{"status":"success"}`, false, delivery.StatusFailure},
		{"malformed json", 200, `<html>login</html>`, true, ""},
		{"server error", 502, `bad gateway`, true, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res, err := delivery.NewAppsScript(srv.URL, srv.Client()).
				Upload(context.Background(), delivery.Upload{Filename: "x.jpg", Payload: []byte{1}})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tc.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tc.wantStatus)
			}
			if res.Message == "" {
				t.Error("failure should carry a message")
			}
		})
	}
}

func TestAppsScript_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := delivery.NewAppsScript(srv.URL, srv.Client()).
		Upload(context.Background(), delivery.Upload{Filename: "x.jpg"})

	var apiErr *delivery.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.IsServerError() {
		t.Errorf("unexpected classification for %d", apiErr.StatusCode)
	}
}

func TestDrive_Upload(t *testing.T) {
	var created, shared bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/permissions"):
			shared = true
			w.Write([]byte(`{"id":"perm1","type":"anyone","role":"reader"}`))
		case strings.HasSuffix(r.URL.Path, "/files"):
			created = true
			w.Write([]byte(`{"id":"abc","webViewLink":"https://drive.example/view/abc","webContentLink":"https://drive.example/dl/abc"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	tr, err := delivery.NewDriveWithOptions(ctx, "folder1",
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewDriveWithOptions: %v", err)
	}

	res, err := tr.Upload(ctx, delivery.Upload{Filename: "strip.jpg", MimeType: "image/jpeg", Payload: []byte("jpeg")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !shared {
		t.Errorf("created=%v shared=%v", created, shared)
	}
	if res.Status != delivery.StatusSuccess || res.URL != "https://drive.example/dl/abc" {
		t.Errorf("result = %+v", res)
	}
}
