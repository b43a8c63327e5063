package provider

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuth},
		{402, KindCredits},
		{429, KindRateLimit},
		{408, KindTimeout},
		{500, KindProvider},
		{503, KindProvider},
		{400, KindProvider},
		{200, KindUnknown},
	}

	for _, tt := range tests {
		if got := KindForStatus(tt.status); got != tt.want {
			t.Errorf("KindForStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestErrorFromResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    ErrorKind
		wantMessage string
	}{
		{
			name:        "message from error body",
			status:      401,
			body:        `{"error":{"message":"invalid api key"}}`,
			wantKind:    KindAuth,
			wantMessage: "invalid api key",
		},
		{
			name:        "unparseable body falls back to default",
			status:      429,
			body:        "too many requests",
			wantKind:    KindRateLimit,
			wantMessage: defaultMessages[KindRateLimit],
		},
		{
			name:        "empty body falls back to default",
			status:      502,
			body:        "",
			wantKind:    KindProvider,
			wantMessage: defaultMessages[KindProvider],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			err := errorFromResponse(resp)
			if err.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", err.Kind, tt.wantKind)
			}
			if err.Status != tt.status {
				t.Errorf("status = %d, want %d", err.Status, tt.status)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", err.Message, tt.wantMessage)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindAuth, Status: 401, Message: "nope"}
	want := "provider error 401 (auth_error): nope"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
