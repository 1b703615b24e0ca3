// Package server exposes the transcription service over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
	"transcript-server/internal/logging"
	"transcript-server/internal/store"
)

// Uploader starts a transcription job for an uploaded file.
type Uploader interface {
	StartTranscription(ctx context.Context, user, lang, filename string, body io.Reader) (string, error)
}

// Projects answers listing and per-project queries.
type Projects interface {
	List(ctx context.Context, user string) (map[string]domain.JobStatus, error)
	Status(ctx context.Context, key store.Key) (domain.JobStatus, error)
	Transcript(ctx context.Context, key store.Key) (domain.Transcript, error)
	SaveTranscript(ctx context.Context, key store.Key, doc domain.Transcript) error
	Raw(ctx context.Context, key store.Key) ([]byte, error)
	Waveform(ctx context.Context, key store.Key) ([]byte, error)
	Amplitude(ctx context.Context, key store.Key, chunks int) ([]int, error)
	Download(ctx context.Context, key store.Key, format string) ([]byte, string, error)
}

// Events is the incremental status feed.
type Events interface {
	SinceForUser(user string, seq int64) []jobs.Event
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Uploads     Uploader
	Projects    Projects
	Events      Events
	Diagnostics func() domain.DiagnosticReport
	// UploadLimiter guards the upload route when set.
	UploadLimiter gin.HandlerFunc
}

// Config holds HTTP settings.
type Config struct {
	Addr            string
	DefaultLanguage string
	MaxUploadBytes  int64
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	deps   Deps
	log    logrus.FieldLogger
	engine *gin.Engine
	http   *http.Server
}

// New builds the router. Gin mode is left to the caller.
func New(cfg Config, deps Deps, log logrus.FieldLogger) *Server {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  logging.OrDiscard(log),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggerMiddleware())
	s.routes(r)
	s.engine = r

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/profiles", s.profiles)

	upload := []gin.HandlerFunc{validIDs("userId")}
	if s.deps.UploadLimiter != nil {
		upload = append(upload, s.deps.UploadLimiter)
	}
	upload = append(upload, s.upload)
	r.POST("/upload/:userId", upload...)

	r.GET("/projects/:userId", validIDs("userId"), s.listProjects)
	r.GET("/events/:userId", validIDs("userId"), s.events)

	project := validIDs("userId", "projectId")
	r.GET("/status/:userId/:projectId", project, s.status)
	r.GET("/results/:userId/:projectId", project, s.results)
	r.POST("/results/:userId/:projectId", project, s.saveResults)
	r.GET("/raw/:userId/:projectId", project, s.raw)
	r.GET("/wav/:userId/:projectId", project, s.wav)
	r.GET("/download/:userId/:projectId", project, s.download)
	r.GET("/plot/:userId/:projectId", project, s.plot)
}

// validIDs rejects path ids outside [A-Za-z0-9_-].
func validIDs(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range params {
			if !store.ValidID(c.Param(p)) {
				fail(c, http.StatusBadRequest, "invalid "+p)
				return
			}
		}
		c.Next()
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		}).Debug("http request")
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
