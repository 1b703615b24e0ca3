// Package projects answers what a user's projects are and what state they
// are in, merging persisted artifacts with transient job status.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"transcript-server/internal/domain"
	"transcript-server/internal/logging"
	"transcript-server/internal/media"
	"transcript-server/internal/store"
	"transcript-server/internal/transcript"
)

const excerptWords = 20

var (
	// ErrNotFound is returned for projects with neither a transient status nor persisted results.
	ErrNotFound = errors.New("project not found")
	// ErrUnsupportedFormat is returned by Download for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported download format")
)

// StatusSource is the transient status store.
type StatusSource interface {
	Get(user, project string) (domain.JobStatus, bool)
	Reconcile(user string, persisted map[string]struct{}) map[string]domain.JobStatus
}

// Assembler builds listings and per-project views.
type Assembler struct {
	store        store.Store
	status       StatusSource
	pricePerHour float64
	log          logrus.FieldLogger
}

// NewAssembler creates an assembler.
func NewAssembler(s store.Store, status StatusSource, pricePerHour float64, log logrus.FieldLogger) *Assembler {
	return &Assembler{
		store:        s,
		status:       status,
		pricePerHour: pricePerHour,
		log:          logging.OrDiscard(log),
	}
}

// List returns every project of user keyed by project id. Persisted
// projects report Succeeded with an excerpt and cost; transient entries
// cover jobs still running or failed. A project whose artifacts cannot be
// read is left out.
func (a *Assembler) List(ctx context.Context, user string) (map[string]domain.JobStatus, error) {
	keys, err := a.store.ListKeys(ctx, store.KindRaw)
	if err != nil {
		return nil, fmt.Errorf("list persisted projects: %w", err)
	}

	persisted := make(map[string]struct{})
	for _, key := range keys {
		if key.User == user {
			persisted[key.Project] = struct{}{}
		}
	}

	out := a.status.Reconcile(user, persisted)
	for project := range persisted {
		status, err := a.persistedStatus(ctx, store.Key{User: user, Project: project})
		if err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{"user": user, "project": project}).Warn("skip unreadable project")
			continue
		}
		out[project] = status
	}
	return out, nil
}

// IDs returns the keys of a listing in stable order.
func IDs(listing map[string]domain.JobStatus) []string {
	ids := make([]string, 0, len(listing))
	for id := range listing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status reports one project. Transient status wins while a job is in flight.
func (a *Assembler) Status(ctx context.Context, key store.Key) (domain.JobStatus, error) {
	if status, ok := a.status.Get(key.User, key.Project); ok {
		return status, nil
	}
	return a.persistedStatus(ctx, key)
}

// Transcript returns the edited transcript, building and caching it from
// the raw payload on first read.
func (a *Assembler) Transcript(ctx context.Context, key store.Key) (domain.Transcript, error) {
	var doc domain.Transcript
	data, err := a.store.Get(ctx, key, store.KindResults)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return doc, fmt.Errorf("decode transcript: %w", err)
		}
		return doc, nil
	case !errors.Is(err, store.ErrNotFound):
		return doc, err
	}

	raw, err := a.Raw(ctx, key)
	if err != nil {
		return doc, err
	}
	words, err := transcript.NormalizeRaw(raw)
	if err != nil {
		return doc, err
	}
	doc = domain.Transcript{Words: words}
	if encoded, err := json.Marshal(doc); err == nil {
		if err := a.store.Put(ctx, key, store.KindResults, encoded); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{"user": key.User, "project": key.Project}).Warn("cache transcript")
		}
	}
	return doc, nil
}

// SaveTranscript stores a user-edited transcript.
func (a *Assembler) SaveTranscript(ctx context.Context, key store.Key, doc domain.Transcript) error {
	if _, err := a.Raw(ctx, key); err != nil {
		return err
	}
	if doc.Words == nil {
		doc.Words = []domain.Word{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return a.store.Put(ctx, key, store.KindResults, data)
}

// Raw returns the recognition payload as received.
func (a *Assembler) Raw(ctx context.Context, key store.Key) ([]byte, error) {
	return a.get(ctx, key, store.KindRaw)
}

// Waveform returns the stored canonical waveform.
func (a *Assembler) Waveform(ctx context.Context, key store.Key) ([]byte, error) {
	return a.get(ctx, key, store.KindWAV)
}

// Amplitude summarizes the waveform into chunks average levels.
func (a *Assembler) Amplitude(ctx context.Context, key store.Key, chunks int) ([]int, error) {
	wav, err := a.Waveform(ctx, key)
	if err != nil {
		return nil, err
	}
	return media.AverageAmplitude(wav, chunks), nil
}

// Download renders the transcript as "json" or "txt".
func (a *Assembler) Download(ctx context.Context, key store.Key, format string) (body []byte, contentType string, err error) {
	doc, err := a.Transcript(ctx, key)
	if err != nil {
		return nil, "", err
	}
	switch format {
	case "", "json":
		body, err = json.MarshalIndent(doc, "", "  ")
		return body, "application/json", err
	case "txt":
		return []byte(transcript.RenderText(doc)), "text/plain; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Cost formats the recognition price for a duration. Unknown durations
// have no cost.
func Cost(durationSeconds, pricePerHour float64) string {
	if durationSeconds < 0 {
		return ""
	}
	return fmt.Sprintf("%.2f €", durationSeconds/3600*pricePerHour)
}

func (a *Assembler) persistedStatus(ctx context.Context, key store.Key) (domain.JobStatus, error) {
	doc, err := a.Transcript(ctx, key)
	if err != nil {
		return domain.JobStatus{}, err
	}
	status := domain.Succeeded(transcript.Excerpt(doc.Words, excerptWords))

	data, err := a.store.Get(ctx, key, store.KindMeta)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.log.WithError(err).WithFields(logrus.Fields{"user": key.User, "project": key.Project}).Warn("read project meta")
		}
		return status, nil
	}
	var meta domain.ProjectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{"user": key.User, "project": key.Project}).Warn("decode project meta")
		return status, nil
	}
	return status.WithCost(Cost(meta.DurationSeconds, a.pricePerHour)), nil
}

func (a *Assembler) get(ctx context.Context, key store.Key, kind store.Kind) ([]byte, error) {
	data, err := a.store.Get(ctx, key, kind)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}
