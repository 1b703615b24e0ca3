// Package transcribe runs one upload through conversion, classification,
// recognition and persistence, publishing progress after every step.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"transcript-server/internal/domain"
	"transcript-server/internal/logging"
	"transcript-server/internal/media"
	"transcript-server/internal/recognize"
	"transcript-server/internal/store"
	"transcript-server/internal/transcript"
)

// Status details published while a job runs.
const (
	DetailConversionStarted    = "conversion started"
	DetailConversionSucceeded  = "conversion succeeded"
	DetailTranscriptionStarted = "transcription started"
	DetailStoringResults       = "storing results"
	DetailTranscriptionFailed  = "transcription failed"
)

// Request identifies one uploaded file to transcribe.
type Request struct {
	User      string
	Project   string
	Language  string
	InputPath string
}

// Converter produces the canonical waveform.
type Converter interface {
	ToWAV(ctx context.Context, inputPath, outPath string) (media.CommandLog, error)
}

// Prober reads audio metadata. Unknown values are negative.
type Prober interface {
	SampleRate(ctx context.Context, path string) int
	Duration(ctx context.Context, path string) float64
}

// Recognizer submits audio to the recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, audio io.Reader, opts recognize.Options) ([]byte, error)
}

// ArtifactWriter persists finished artifacts.
type ArtifactWriter interface {
	Put(ctx context.Context, key store.Key, kind store.Kind, data []byte) error
}

// StatusPublisher receives every status transition.
type StatusPublisher interface {
	Put(user, project string, status domain.JobStatus)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Converter  Converter
	Probe      Prober
	Recognizer Recognizer
	Store      ArtifactWriter
	Status     StatusPublisher
}

// Config holds per-process pipeline settings.
type Config struct {
	WorkDir     string
	ServiceName string
}

// PipelineError is a step-aware error with optional command context.
type PipelineError struct {
	Step       Step             `json:"step"`
	Message    string           `json:"message"`
	CommandLog media.CommandLog `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Step, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pipeline orchestrates one transcription job at a time per call to Run.
// It is safe for concurrent use by several workers.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  logrus.FieldLogger

	readFile   func(name string) ([]byte, error)
	open       func(name string) (*os.File, error)
	removeFile func(name string) error
	now        func() time.Time
}

// NewPipeline wires a pipeline with OS file access.
func NewPipeline(deps Deps, cfg Config, log logrus.FieldLogger) *Pipeline {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "recognition"
	}
	return &Pipeline{
		deps:       deps,
		cfg:        cfg,
		log:        logging.OrDiscard(log),
		readFile:   os.ReadFile,
		open:       os.Open,
		removeFile: os.Remove,
		now:        time.Now,
	}
}

// run carries the state of one job.
type run struct {
	req   Request
	key   store.Key
	wav   string
	state *machine
	log   logrus.FieldLogger
}

// Run executes every step for req. Progress and the final outcome are
// published to the status publisher; the returned error is for logging only.
// The uploaded file and the scratch waveform are removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, req Request) (err error) {
	r := &run{
		req:   req,
		key:   store.Key{User: req.User, Project: req.Project},
		wav:   filepath.Join(p.cfg.WorkDir, req.Project+".wav"),
		state: newMachine(),
		log:   p.log.WithFields(logrus.Fields{"user": req.User, "project": req.Project}),
	}

	defer p.cleanup(r)
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{"step": r.state.current, "panic": rec}).Error("pipeline fault")
			err = p.fail(r, DetailTranscriptionFailed, media.CommandLog{}, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := p.convert(ctx, r); err != nil {
		return err
	}
	profile, err := p.classify(ctx, r)
	if err != nil {
		return err
	}
	raw, err := p.recognize(ctx, r, profile)
	if err != nil {
		return err
	}
	return p.persist(ctx, r, profile, raw)
}

func (p *Pipeline) convert(ctx context.Context, r *run) error {
	p.publish(r, domain.Ongoing(DetailConversionStarted))

	cmdLog, err := p.deps.Converter.ToWAV(ctx, r.req.InputPath, r.wav)
	if err != nil {
		diag := err.Error()
		var toolErr *media.ToolError
		if errors.As(err, &toolErr) && toolErr.Diagnostic != "" {
			diag = toolErr.Diagnostic
		}
		r.log.WithField("diagnostic", diag).Warn("conversion failed")
		return p.fail(r, "conversion failed: "+diag, cmdLog, err)
	}

	p.removeQuiet(r.log, r.req.InputPath)
	if err := p.advance(r, StepClassifying); err != nil {
		return err
	}
	p.publish(r, domain.Ongoing(DetailConversionSucceeded))
	return nil
}

func (p *Pipeline) classify(ctx context.Context, r *run) (domain.RecognitionProfile, error) {
	rate := p.deps.Probe.SampleRate(ctx, r.wav)
	profile, ok := recognize.SelectProfile(r.req.Language, rate)
	if !ok {
		return profile, p.fail(r, fmt.Sprintf("unsupported language %q", r.req.Language), media.CommandLog{}, nil)
	}
	r.log = r.log.WithField("profile", profile.ID)
	r.log.WithField("sample_rate", rate).Info("recognition profile selected")

	if err := p.advance(r, StepRecognizing); err != nil {
		return profile, err
	}
	p.publish(r, domain.Ongoing(DetailTranscriptionStarted))
	return profile, nil
}

func (p *Pipeline) recognize(ctx context.Context, r *run, profile domain.RecognitionProfile) ([]byte, error) {
	audio, err := p.open(r.wav)
	if err != nil {
		return nil, p.fail(r, DetailTranscriptionFailed+": "+err.Error(), media.CommandLog{}, err)
	}
	defer audio.Close()

	raw, err := p.deps.Recognizer.Recognize(ctx, audio, recognize.OptionsFor(profile.Model, profile.Diarization))
	if err != nil {
		r.log.WithError(err).Warn("recognition request failed")
		return nil, p.fail(r, DetailTranscriptionFailed+": "+err.Error(), media.CommandLog{}, err)
	}
	if !recognize.HasResults(raw) {
		r.log.Warn("recognition response has no results")
		return nil, p.fail(r, p.cfg.ServiceName+" "+DetailTranscriptionFailed, media.CommandLog{}, nil)
	}

	if err := p.advance(r, StepPersisting); err != nil {
		return nil, err
	}
	p.publish(r, domain.Ongoing(DetailStoringResults))
	return raw, nil
}

func (p *Pipeline) persist(ctx context.Context, r *run, profile domain.RecognitionProfile, raw []byte) error {
	words, err := transcript.NormalizeRaw(raw)
	if err != nil {
		r.log.WithError(err).Error("recognition payload rejected")
		return p.fail(r, DetailTranscriptionFailed, media.CommandLog{}, err)
	}

	wav, err := p.readFile(r.wav)
	if err != nil {
		return p.fail(r, "storing results failed: "+err.Error(), media.CommandLog{}, err)
	}
	meta, err := json.Marshal(domain.ProjectMeta{
		Language:        profile.Language,
		Profile:         profile.ID,
		SampleRate:      p.deps.Probe.SampleRate(ctx, r.wav),
		DurationSeconds: p.deps.Probe.Duration(ctx, r.wav),
		CreatedAt:       p.now().UTC(),
	})
	if err != nil {
		return p.fail(r, "storing results failed: "+err.Error(), media.CommandLog{}, err)
	}

	// raw.json is written last: its presence marks the project as persisted.
	for _, artifact := range []struct {
		kind store.Kind
		data []byte
	}{
		{store.KindWAV, wav},
		{store.KindMeta, meta},
		{store.KindRaw, raw},
	} {
		if err := p.deps.Store.Put(ctx, r.key, artifact.kind, artifact.data); err != nil {
			r.log.WithError(err).WithField("kind", artifact.kind).Warn("store write failed")
			return p.fail(r, "storing results failed: "+err.Error(), media.CommandLog{}, err)
		}
	}

	if err := p.advance(r, StepSucceeded); err != nil {
		return err
	}
	p.publish(r, domain.Succeeded(""))
	r.log.WithField("words", len(words)).Info("transcription succeeded")
	return nil
}

func (p *Pipeline) advance(r *run, to Step) error {
	if err := r.state.advance(to); err != nil {
		return p.fail(r, DetailTranscriptionFailed, media.CommandLog{}, err)
	}
	r.log.WithField("step", to).Debug("step entered")
	return nil
}

// fail moves the run to failed and publishes detail. It is a no-op when the
// run already reached a terminal step.
func (p *Pipeline) fail(r *run, detail string, cmdLog media.CommandLog, cause error) error {
	step := r.state.current
	if step.Terminal() {
		return &PipelineError{Step: step, Message: detail, CommandLog: cmdLog, Err: cause}
	}
	r.state.current = StepFailed
	p.publish(r, domain.Failed(detail))
	r.log.WithField("step", step).Info("transcription failed")
	return &PipelineError{Step: step, Message: detail, CommandLog: cmdLog, Err: cause}
}

func (p *Pipeline) publish(r *run, status domain.JobStatus) {
	p.deps.Status.Put(r.req.User, r.req.Project, status)
}

func (p *Pipeline) cleanup(r *run) {
	p.removeQuiet(r.log, r.req.InputPath)
	p.removeQuiet(r.log, r.wav)
}

func (p *Pipeline) removeQuiet(log logrus.FieldLogger, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := p.removeFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).WithField("path", path).Warn("remove scratch file")
	}
}
