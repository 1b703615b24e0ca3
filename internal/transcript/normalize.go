// Package transcript turns raw recognition payloads into ordered,
// speaker-segmented word sequences and renders them for download.
package transcript

import (
	"errors"
	"fmt"

	"transcript-server/internal/domain"
	"transcript-server/internal/recognize"
)

// ParagraphBreak prefixes the first word spoken by a new speaker.
const ParagraphBreak = "\n\n"

// ErrMalformedPayload is returned when the payload shape cannot be normalized.
var ErrMalformedPayload = errors.New("malformed recognition payload")

// NormalizeRaw decodes and normalizes a raw payload.
func NormalizeRaw(raw []byte) ([]domain.Word, error) {
	res, err := recognize.ParseResults(raw)
	if err != nil {
		return nil, err
	}
	return Normalize(res)
}

// Normalize flattens all segments in order, attaches speaker labels and marks
// speaker changes. The input is not modified.
func Normalize(res *recognize.Results) ([]domain.Word, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil results", ErrMalformedPayload)
	}
	words, err := flatten(res.Results)
	if err != nil {
		return nil, err
	}
	labeled, err := pairSpeakers(words, res.SpeakerLabels)
	if err != nil {
		return nil, err
	}
	return markSpeakerChanges(labeled), nil
}

// flatten emits words in segment order, then in-segment order.
func flatten(segments []recognize.Segment) ([]domain.Word, error) {
	var out []domain.Word
	for i, seg := range segments {
		if len(seg.Alternatives) == 0 {
			return nil, fmt.Errorf("%w: segment %d has no alternatives", ErrMalformedPayload, i)
		}
		best := seg.Alternatives[0]
		if len(best.WordConfidence) < len(best.Timestamps) {
			return nil, fmt.Errorf("%w: segment %d has %d timestamps but %d confidences",
				ErrMalformedPayload, i, len(best.Timestamps), len(best.WordConfidence))
		}
		for j, ts := range best.Timestamps {
			out = append(out, domain.Word{
				StartTime:      ts.StartTime,
				EndTime:        ts.EndTime,
				Text:           ts.Word,
				WordConfidence: best.WordConfidence[j].Confidence,
			})
		}
	}
	return out, nil
}

type labeledWord struct {
	word  domain.Word
	label *recognize.SpeakerLabel
}

// pairSpeakers zips the flat word sequence with the flat speaker label list.
// This is the only place the positional coupling between the two lists exists.
func pairSpeakers(words []domain.Word, labels []recognize.SpeakerLabel) ([]labeledWord, error) {
	out := make([]labeledWord, len(words))
	if len(labels) == 0 {
		for i, w := range words {
			out[i] = labeledWord{word: w}
		}
		return out, nil
	}
	if len(labels) < len(words) {
		return nil, fmt.Errorf("%w: %d words but %d speaker labels", ErrMalformedPayload, len(words), len(labels))
	}
	for i, w := range words {
		label := labels[i]
		out[i] = labeledWord{word: w, label: &label}
	}
	return out, nil
}

// markSpeakerChanges compares each labeled word with the last word that had a
// speaker id. Unlabeled words never start a paragraph.
func markSpeakerChanges(labeled []labeledWord) []domain.Word {
	out := make([]domain.Word, len(labeled))
	var lastSpeaker *int
	for i, lw := range labeled {
		w := lw.word
		if lw.label != nil {
			speaker := lw.label.Speaker
			confidence := lw.label.Confidence
			w.SpeakerID = &speaker
			w.SpeakerConfidence = &confidence
		}
		if w.HasSpeaker() {
			if lastSpeaker != nil && *w.SpeakerID != *lastSpeaker {
				w.Text = ParagraphBreak + w.Text
			}
			lastSpeaker = w.SpeakerID
		}
		out[i] = w
	}
	return out
}
