package recognize

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientRecognizeSendsOptions(t *testing.T) {
	var gotQuery, gotType, gotUser, gotPass, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/recognize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		gotUser, gotPass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/", "secret", 0, srv.Client())
	raw, err := client.Recognize(context.Background(), strings.NewReader("RIFF"), OptionsFor("en-US_NarrowbandModel", true))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if string(raw) != `{"results":[]}` {
		t.Fatalf("expected raw body verbatim, got %q", raw)
	}
	for _, part := range []string{"model=en-US_NarrowbandModel", "speaker_labels=true", "word_confidence=true", "timestamps=true", "inactivity_timeout=-1"} {
		if !strings.Contains(gotQuery, part) {
			t.Fatalf("query %q missing %q", gotQuery, part)
		}
	}
	if gotType != "audio/wav" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if gotUser != "apikey" || gotPass != "secret" {
		t.Fatalf("unexpected basic auth %q:%q", gotUser, gotPass)
	}
	if gotBody != "RIFF" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestClientRecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 0, nil)
	_, err := client.Recognize(context.Background(), strings.NewReader(""), OptionsFor("x", false))
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.StatusCode != http.StatusBadRequest || svcErr.Body != "model not found" {
		t.Fatalf("unexpected service error: %+v", svcErr)
	}
}

func TestClientRecognizeCanceledContext(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", 60, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Recognize(ctx, strings.NewReader(""), Options{}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
