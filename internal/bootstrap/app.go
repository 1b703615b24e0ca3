// Package bootstrap constructs the transcription service from settings and
// owns its lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"transcript-server/internal/diagnostics"
	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
	"transcript-server/internal/logging"
	"transcript-server/internal/media"
	"transcript-server/internal/notify"
	"transcript-server/internal/projects"
	"transcript-server/internal/recognize"
	"transcript-server/internal/server"
	"transcript-server/internal/store"
	"transcript-server/internal/transcribe"
)

// DetailQueued is the status of an accepted upload waiting for a worker.
const DetailQueued = "queued"

const (
	eventHistory = 1000
	drainTimeout = 30 * time.Second
)

// App wires storage, status tracking, the worker pool, the pipeline and the HTTP server.
type App struct {
	Settings domain.Settings
	Status   *jobs.StatusStore
	Events   *jobs.EventBus
	Pool     *jobs.Pool
	Pipeline pipelineRunner
	Projects *projects.Assembler
	Server   *server.Server

	checker *diagnostics.Checker
	log     logrus.FieldLogger
	newID   func() string
	closers []func() error
}

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) error
}

// New builds the application. Optional integrations (S3, redis, AMQP) are
// enabled by their settings.
func New(settings domain.Settings, log logrus.FieldLogger) (*App, error) {
	log = logging.OrDiscard(log)
	settings.DefaultLanguage = normalizeLanguage(settings.DefaultLanguage)
	if settings.DefaultLanguage == "" {
		settings.DefaultLanguage = "en"
	}
	if err := os.MkdirAll(settings.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}

	app := &App{
		Settings: settings,
		Events:   jobs.NewEventBus(eventHistory),
		checker:  diagnostics.NewChecker(),
		log:      log,
		newID:    uuid.NewString,
	}

	st, err := openStore(settings.Storage, settings.DataDir)
	if err != nil {
		return nil, err
	}

	statusOpts := []jobs.Option{
		jobs.WithListener(app.Events),
		jobs.WithSucceededGrace(time.Duration(settings.Status.SucceededGraceSeconds) * time.Second),
	}
	if settings.AMQP.URL != "" {
		pub, err := notify.Dial(settings.AMQP.URL, settings.AMQP.Exchange, log)
		if err != nil {
			log.WithError(err).Warn("status notifications disabled")
		} else {
			statusOpts = append(statusOpts, jobs.WithListener(pub))
			app.closers = append(app.closers, pub.Close)
		}
	}
	app.Status = jobs.NewStatusStore(statusOpts...)

	runner := media.ExecRunner{}
	app.Pipeline = transcribe.NewPipeline(transcribe.Deps{
		Converter:  media.NewConverter(settings.Tools.FFmpeg, runner),
		Probe:      media.NewProbe(settings.Tools.FFprobe, runner, log),
		Recognizer: recognize.NewClient(settings.Recognition.URL, settings.Recognition.APIKey, settings.Recognition.RequestsPerMinute, nil),
		Store:      st,
		Status:     app.Status,
	}, transcribe.Config{
		WorkDir:     settings.WorkDir,
		ServiceName: settings.Recognition.ServiceName,
	}, log)

	app.Pool = jobs.NewPool(jobs.PoolConfig{
		Workers:   settings.Workers.Count,
		QueueSize: settings.Workers.QueueSize,
	}, log)
	app.Projects = projects.NewAssembler(st, app.Status, settings.PricePerHour, log)

	limiter := app.uploadLimiter(settings.Redis)
	app.Server = server.New(server.Config{
		Addr:            settings.Server.Addr,
		DefaultLanguage: settings.DefaultLanguage,
	}, server.Deps{
		Uploads:       app,
		Projects:      app.Projects,
		Events:        app.Events,
		Diagnostics:   app.Diagnostics,
		UploadLimiter: limiter,
	}, log)

	return app, nil
}

func openStore(cfg domain.StorageSettings, dataDir string) (store.Store, error) {
	switch cfg.Backend {
	case "", "file":
		fs, err := store.NewFileStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return fs, nil
	case "s3":
		objects, err := store.NewObjectStore(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return objects, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *App) uploadLimiter(cfg domain.RedisSettings) gin.HandlerFunc {
	if cfg.Addr == "" || cfg.UploadLimit <= 0 {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	a.closers = append(a.closers, client.Close)
	return server.NewRateLimiter(server.RateLimiterConfig{
		Client: client,
		Limit:  cfg.UploadLimit,
		Window: time.Duration(cfg.WindowSeconds) * time.Second,
		Log:    a.log,
	})
}

// Diagnostics reruns dependency checks.
func (a *App) Diagnostics() domain.DiagnosticReport {
	return a.checker.Run(a.Settings)
}

// StartTranscription stores the upload in the work directory, records it as
// queued and hands it to the worker pool. It returns the new project id.
func (a *App) StartTranscription(ctx context.Context, user, lang, filename string, body io.Reader) (string, error) {
	if !store.ValidID(user) {
		return "", fmt.Errorf("invalid user id %q", user)
	}
	lang = normalizeLanguage(lang)
	if lang == "" {
		lang = a.Settings.DefaultLanguage
	}
	if !recognize.Supported(lang) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, lang)
	}

	projectID := a.newID()
	inputPath := filepath.Join(a.Settings.WorkDir, projectID+"-"+SanitizeFilename(filename))
	if err := saveUpload(ctx, inputPath, body); err != nil {
		return "", err
	}

	req := transcribe.Request{User: user, Project: projectID, Language: lang, InputPath: inputPath}
	a.Status.Put(user, projectID, domain.Ongoing(DetailQueued))
	if err := a.Pool.Submit(func(ctx context.Context) { a.runJob(ctx, req) }); err != nil {
		a.Status.Remove(user, projectID)
		_ = os.Remove(inputPath)
		return "", err
	}

	a.log.WithFields(logrus.Fields{"user": user, "project": projectID, "language": lang}).Info("upload accepted")
	return projectID, nil
}

// runJob executes the pipeline and logs the failing command, if any.
func (a *App) runJob(ctx context.Context, req transcribe.Request) {
	err := a.Pipeline.Run(ctx, req)
	if err == nil {
		return
	}
	entry := a.log.WithFields(logrus.Fields{"user": req.User, "project": req.Project}).WithError(err)
	var pipelineErr *transcribe.PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
		entry = entry.WithFields(logrus.Fields{
			"command":   pipelineErr.CommandLog.Command,
			"args":      strings.Join(pipelineErr.CommandLog.Args, " "),
			"exit_code": pipelineErr.CommandLog.ExitCode,
		})
	}
	entry.Warn("job failed")
}

// Run starts the workers and the HTTP server and blocks until ctx is
// cancelled or the server fails. Queued jobs are drained before returning.
func (a *App) Run(ctx context.Context) error {
	report := a.Diagnostics()
	for _, item := range report.Failed() {
		a.log.WithFields(logrus.Fields{"check": item.ID, "hint": item.Hint}).Warn(item.Message)
	}

	a.Pool.Start()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := a.Pool.Stop(stopCtx); err != nil {
			a.log.WithError(err).Warn("worker pool did not drain")
		}
		return nil
	})

	err := g.Wait()
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SanitizeFilename replaces path and shell metacharacters in an uploaded file name.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	for _, bad := range []string{"..", "/", "\\", "~", "%", "$"} {
		name = strings.ReplaceAll(name, bad, "_")
	}
	if name == "" {
		return "upload"
	}
	return name
}

func saveUpload(ctx context.Context, path string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr == nil && closeErr == nil && n > 0 {
		return nil
	}
	_ = os.Remove(path)
	switch {
	case copyErr != nil:
		return fmt.Errorf("write upload file: %w", copyErr)
	case closeErr != nil:
		return fmt.Errorf("write upload file: %w", closeErr)
	default:
		return domain.ErrEmptyUpload
	}
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
