package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
	"transcript-server/internal/projects"
	"transcript-server/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUploader records uploads and returns a canned result.
type fakeUploader struct {
	user, lang, filename, body string
	err                        error
}

// StartTranscription delegates to injected behavior.
func (f *fakeUploader) StartTranscription(_ context.Context, user, lang, filename string, body io.Reader) (string, error) {
	data, _ := io.ReadAll(body)
	f.user, f.lang, f.filename, f.body = user, lang, filename, string(data)
	if f.err != nil {
		return "", f.err
	}
	return "project-1", nil
}

type testEnv struct {
	uploader *fakeUploader
	status   *jobs.StatusStore
	bus      *jobs.EventBus
	store    *store.FileStore
	handler  http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	env := &testEnv{uploader: &fakeUploader{}, bus: jobs.NewEventBus(10), store: fs}
	env.status = jobs.NewStatusStore(jobs.WithListener(env.bus))
	srv := New(Config{DefaultLanguage: "en"}, Deps{
		Uploads:  env.uploader,
		Projects: projects.NewAssembler(fs, env.status, 20, nil),
		Events:   env.bus,
		Diagnostics: func() domain.DiagnosticReport {
			return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "tool_ffmpeg", Status: domain.DiagnosticStatusPass}}}
		},
	}, nil)
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, url, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// TestUploadStartsJob verifies the upload route hands the file to the uploader.
func TestUploadStartsJob(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, multipartUpload(t, "/upload/alice?lang=de", "talk.mp3", "audio"))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success   bool   `json:"success"`
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ProjectID != "project-1" {
		t.Fatalf("resp = %+v", resp)
	}
	if env.uploader.user != "alice" || env.uploader.lang != "de" || env.uploader.filename != "talk.mp3" || env.uploader.body != "audio" {
		t.Fatalf("uploader saw %+v", env.uploader)
	}
}

// TestUploadErrors maps service errors to HTTP codes.
func TestUploadErrors(t *testing.T) {
	cases := map[error]int{
		domain.ErrUnsupportedLanguage: http.StatusBadRequest,
		jobs.ErrQueueFull:             http.StatusServiceUnavailable,
		io.ErrUnexpectedEOF:           http.StatusInternalServerError,
	}
	for err, want := range cases {
		env := newEnv(t)
		env.uploader.err = err
		rec := env.do(t, multipartUpload(t, "/upload/alice", "a.wav", "x"))
		if rec.Code != want {
			t.Fatalf("%v: code = %d, want %d", err, rec.Code, want)
		}
		if !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Fatalf("%v: body = %s", err, rec.Body.String())
		}
	}
}

// TestInvalidIDsRejected verifies path id validation.
func TestInvalidIDsRejected(t *testing.T) {
	env := newEnv(t)
	for _, url := range []string{"/projects/al.ice", "/status/alice/p%2E1", "/raw/a$b/p"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code = %d, want 400", url, rec.Code)
		}
	}
}

// TestProjectsAndResults covers listing, status and transcript routes.
func TestProjectsAndResults(t *testing.T) {
	env := newEnv(t)
	key := store.Key{User: "alice", Project: "done"}
	raw := `{"results":[{"alternatives":[{"timestamps":[["hi",0,0.5]],"word_confidence":[["hi",0.9]]}]}]}`
	if err := env.store.Put(context.Background(), key, store.KindRaw, []byte(raw)); err != nil {
		t.Fatalf("put: %v", err)
	}
	env.status.Put("alice", "running", domain.Ongoing("conversion started"))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/projects/alice", nil))
	var listing map[string]domain.JobStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if len(listing) != 2 || listing["done"].Detail != "hi" || listing["running"].Stage != domain.StageOngoing {
		t.Fatalf("listing = %+v", listing)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/status/alice/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status code = %d", rec.Code)
	}

	edited := `{"transcript":[{"startTime":0,"endTime":0.5,"word":"hey","word_confidence":1}]}`
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/results/alice/done", strings.NewReader(edited)))
	if rec.Code != http.StatusOK {
		t.Fatalf("save code = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/download/alice/done?format=txt", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hey") {
		t.Fatalf("download = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="done.txt"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

// TestEventsFeed verifies incremental reads per user.
func TestEventsFeed(t *testing.T) {
	env := newEnv(t)
	env.status.Put("alice", "p1", domain.Ongoing("conversion started"))
	env.status.Put("bob", "p2", domain.Ongoing("conversion started"))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/events/alice?since=0", nil))
	var resp struct {
		Events []jobs.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Project != "p1" {
		t.Fatalf("events = %+v", resp.Events)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/events/alice?since=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

// TestHealthAndProfiles checks the static routes.
func TestHealthAndProfiles(t *testing.T) {
	env := newEnv(t)
	if rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("health code = %d", rec.Code)
	}
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/profiles", nil))
	var profiles []domain.RecognitionProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &profiles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(profiles) != 4 {
		t.Fatalf("profiles = %d, want 4", len(profiles))
	}
}

// TestPlotValidatesChunks verifies query validation before storage access.
func TestPlotValidatesChunks(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/plot/alice/p1?chunks=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/plot/alice/p1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}
