package domain

import "time"

// Stage is the externally visible state of a transcription job.
type Stage string

const (
	StageOngoing   Stage = "ongoing"
	StageSucceeded Stage = "succeeded"
	StageFailed    Stage = "failed"
	StageUnknown   Stage = "unknown"
)

// JobStatus is an immutable status value. A new value replaces the old one;
// fields are never changed in place.
type JobStatus struct {
	Stage  Stage  `json:"status"`
	Detail string `json:"details,omitempty"`
	Cost   string `json:"cost,omitempty"`
}

// Ongoing reports work in progress with the current step description.
func Ongoing(detail string) JobStatus {
	return JobStatus{Stage: StageOngoing, Detail: detail}
}

// Succeeded reports a finished job. Detail carries the transcript excerpt in listings.
func Succeeded(detail string) JobStatus {
	return JobStatus{Stage: StageSucceeded, Detail: detail}
}

// Failed reports a terminal failure with a human-readable reason.
func Failed(detail string) JobStatus {
	return JobStatus{Stage: StageFailed, Detail: detail}
}

// Unknown reports a status that could not be determined.
func Unknown(detail string) JobStatus {
	return JobStatus{Stage: StageUnknown, Detail: detail}
}

// WithCost returns a copy of the status carrying the formatted cost.
func (s JobStatus) WithCost(cost string) JobStatus {
	s.Cost = cost
	return s
}

// Terminal reports whether no further transitions follow this status.
func (s JobStatus) Terminal() bool {
	return s.Stage == StageSucceeded || s.Stage == StageFailed
}

// Word is one recognized token of a normalized transcript.
type Word struct {
	StartTime         float64  `json:"startTime"`
	EndTime           float64  `json:"endTime"`
	Text              string   `json:"word"`
	WordConfidence    float64  `json:"word_confidence"`
	SpeakerID         *int     `json:"speaker,omitempty"`
	SpeakerConfidence *float64 `json:"speaker_confidence,omitempty"`
}

// HasSpeaker reports whether diarization data is attached.
func (w Word) HasSpeaker() bool {
	return w.SpeakerID != nil
}

// Transcript is the stored, user-editable document for one project.
type Transcript struct {
	Words     []Word          `json:"transcript"`
	Obfuscate map[string]bool `json:"obfuscate,omitempty"`
}

// ProjectMeta records facts about a finished job that listings need later.
type ProjectMeta struct {
	Language        string    `json:"language"`
	Profile         string    `json:"profile"`
	SampleRate      int       `json:"sampleRate"`
	DurationSeconds float64   `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RecognitionProfile is the language/quality configuration sent to the recognizer.
type RecognitionProfile struct {
	ID          string `json:"id"`
	Language    string `json:"language"`
	HighQuality bool   `json:"highQuality"`
	Model       string `json:"model"`
	Diarization bool   `json:"diarization"`
}
