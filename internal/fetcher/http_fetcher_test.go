package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		responseBody   []byte
		statusCode     int
		expectedError  string
		expectedLength int
	}{
		{
			name:           "valid image",
			contentType:    "image/jpeg",
			responseBody:   []byte("fake-image-data"),
			statusCode:     http.StatusOK,
			expectedLength: 15,
		},
		{
			name:          "not found",
			contentType:   "image/jpeg",
			statusCode:    http.StatusNotFound,
			expectedError: "unexpected status code: 404",
		},
		{
			name:          "not an image",
			contentType:   "text/plain",
			responseBody:  []byte("not-an-image"),
			statusCode:    http.StatusOK,
			expectedError: "url is not an image",
		},
		{
			name:        "oversized body is truncated",
			contentType: "image/png",
			// Past the cap the reader simply stops, no error
			responseBody:   []byte(strings.Repeat("a", maxArtworkSize+1024)),
			statusCode:     http.StatusOK,
			expectedLength: maxArtworkSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write(tt.responseBody)
			}))
			defer server.Close()

			f := NewHTTPFetcher(zap.NewNop())
			data, err := f.Fetch(context.Background(), server.URL)

			if tt.expectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectedError) {
					t.Fatalf("error = %v, want %q", err, tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if len(data) != tt.expectedLength {
				t.Errorf("length = %d, want %d", len(data), tt.expectedLength)
			}
		})
	}
}

func TestHTTPFetcher_RejectsNonHTTPURL(t *testing.T) {
	f := NewHTTPFetcher(zap.NewNop())
	if _, err := f.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatal("expected an error for a non-http url")
	}
}

func TestHTTPFetcher_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(zap.NewNop())
	if _, err := f.Fetch(ctx, server.URL); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
