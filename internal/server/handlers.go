package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
	"transcript-server/internal/projects"
	"transcript-server/internal/recognize"
	"transcript-server/internal/store"
)

const (
	defaultChunks = 100
	maxChunks     = 10000
)

func projectKey(c *gin.Context) store.Key {
	return store.Key{User: c.Param("userId"), Project: c.Param("projectId")}
}

func (s *Server) upload(c *gin.Context) {
	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file required")
		return
	}
	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	lang := c.DefaultQuery("lang", s.cfg.DefaultLanguage)
	projectID, err := s.deps.Uploads.StartTranscription(c.Request.Context(), c.Param("userId"), lang, file.Filename, f)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "projectId": projectID})
	case errors.Is(err, domain.ErrUnsupportedLanguage), errors.Is(err, domain.ErrEmptyUpload):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrPoolStopped):
		fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.WithError(err).WithField("user", c.Param("userId")).Error("upload failed")
		fail(c, http.StatusInternalServerError, "upload failed")
	}
}

func (s *Server) listProjects(c *gin.Context) {
	listing, err := s.deps.Projects.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.log.WithError(err).Error("list projects")
		fail(c, http.StatusInternalServerError, "cannot list projects")
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) status(c *gin.Context) {
	status, err := s.deps.Projects.Status(c.Request.Context(), projectKey(c))
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) results(c *gin.Context) {
	doc, err := s.deps.Projects.Transcript(c.Request.Context(), projectKey(c))
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) saveResults(c *gin.Context) {
	var doc domain.Transcript
	if err := c.ShouldBindJSON(&doc); err != nil {
		fail(c, http.StatusBadRequest, "invalid transcript: "+err.Error())
		return
	}
	if err := s.deps.Projects.SaveTranscript(c.Request.Context(), projectKey(c), doc); err != nil {
		s.projectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) raw(c *gin.Context) {
	data, err := s.deps.Projects.Raw(c.Request.Context(), projectKey(c))
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) wav(c *gin.Context) {
	key := projectKey(c)
	data, err := s.deps.Projects.Waveform(c.Request.Context(), key)
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+key.Project+`.wav"`)
	c.Data(http.StatusOK, "audio/wav", data)
}

func (s *Server) download(c *gin.Context) {
	key := projectKey(c)
	format := c.DefaultQuery("format", "json")
	body, contentType, err := s.deps.Projects.Download(c.Request.Context(), key, format)
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+key.Project+`.`+format+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func (s *Server) plot(c *gin.Context) {
	chunks := defaultChunks
	if raw := c.Query("chunks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxChunks {
			fail(c, http.StatusBadRequest, "chunks must be between 1 and 10000")
			return
		}
		chunks = n
	}
	levels, err := s.deps.Projects.Amplitude(c.Request.Context(), projectKey(c), chunks)
	if err != nil {
		s.projectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amplitudes": levels})
}

func (s *Server) events(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}
	events := s.deps.Events.SinceForUser(c.Param("userId"), since)
	if events == nil {
		events = []jobs.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) profiles(c *gin.Context) {
	c.JSON(http.StatusOK, recognize.Profiles())
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Diagnostics == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	report := s.deps.Diagnostics()
	status := http.StatusOK
	if report.HasFailures {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) projectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, projects.ErrNotFound):
		fail(c, http.StatusNotFound, "project not found")
	case errors.Is(err, projects.ErrUnsupportedFormat):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).WithFields(logrus.Fields{"user": c.Param("userId"), "project": c.Param("projectId")}).Error("project request failed")
		fail(c, http.StatusInternalServerError, "internal error")
	}
}
