// Package diagnostics checks that the server's external dependencies are
// usable before jobs are accepted.
package diagnostics

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"transcript-server/internal/domain"
)

// Checker validates external tools, storage directories and service settings.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", settings.Tools.FFmpeg),
		c.checkTool("ffprobe", settings.Tools.FFprobe),
		c.checkWritableDir("data_dir", "Data directory", settings.DataDir, settings.Storage.Backend == "s3"),
		c.checkWritableDir("work_dir", "Work directory", settings.WorkDir, false),
		checkRecognition(settings.Recognition),
		checkStorage(settings.Storage),
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: len(domain.DiagnosticReport{Items: items}.Failed()) > 0,
		Items:       items,
	}
}

// checkTool verifies a configured executable resolves.
func (c *Checker) checkTool(name, configured string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "tool_" + name, Name: name}
	if strings.TrimSpace(configured) == "" {
		configured = name
	}

	path, err := c.lookPath(configured)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found: %s", configured)
		item.Hint = fmt.Sprintf("Install %s or set tools.%s to its full path.", name, name)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkWritableDir validates directory existence and write access. Optional
// directories pass when unset.
func (c *Checker) checkWritableDir(id, name, dir string, optional bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name}

	if strings.TrimSpace(dir) == "" {
		if optional {
			item.Status = domain.DiagnosticStatusPass
			item.Message = "Not used by the configured storage backend."
			return item
		}
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = fmt.Sprintf("Set %s in the configuration file.", id)
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

func checkRecognition(cfg domain.RecognitionSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "recognition", Name: "Recognition service"}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Invalid service URL: %q", cfg.URL)
		item.Hint = "Set recognition.url to the service base URL."
		return item
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "API key is not configured."
		item.Hint = "Set recognition.api_key or TRANSCRIPT_RECOGNITION_API_KEY."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%s at %s", cfg.ServiceName, u.Host)
	return item
}

func checkStorage(cfg domain.StorageSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "storage", Name: "Project storage"}

	switch cfg.Backend {
	case "", "file":
		item.Status = domain.DiagnosticStatusPass
		item.Message = "File backend"
	case "s3":
		if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = "S3 endpoint or bucket is missing."
			item.Hint = "Set storage.s3.endpoint and storage.s3.bucket."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("S3 bucket %s at %s", cfg.S3.Bucket, cfg.S3.Endpoint)
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown storage backend: %s", cfg.Backend)
		item.Hint = "Use \"file\" or \"s3\"."
	}
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
