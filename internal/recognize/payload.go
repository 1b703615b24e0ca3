package recognize

import (
	"encoding/json"
	"fmt"
)

// Results is the recognition payload as returned by the service.
type Results struct {
	Results       []Segment      `json:"results"`
	SpeakerLabels []SpeakerLabel `json:"speaker_labels,omitempty"`
}

// Segment is one recognized utterance with ranked alternatives.
type Segment struct {
	Final        bool          `json:"final"`
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is one hypothesis of a segment. The first one is the best.
type Alternative struct {
	Transcript     string           `json:"transcript"`
	Confidence     float64          `json:"confidence"`
	Timestamps     []Timestamp      `json:"timestamps"`
	WordConfidence []WordConfidence `json:"word_confidence"`
}

// Timestamp is encoded on the wire as ["word", start, end].
type Timestamp struct {
	Word      string
	StartTime float64
	EndTime   float64
}

// UnmarshalJSON decodes the tuple form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("timestamp: want 3 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &t.Word); err != nil {
		return fmt.Errorf("timestamp word: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &t.StartTime); err != nil {
		return fmt.Errorf("timestamp start: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &t.EndTime); err != nil {
		return fmt.Errorf("timestamp end: %w", err)
	}
	return nil
}

// MarshalJSON encodes the tuple form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Word, t.StartTime, t.EndTime})
}

// WordConfidence is encoded on the wire as ["word", confidence].
type WordConfidence struct {
	Word       string
	Confidence float64
}

// UnmarshalJSON decodes the tuple form.
func (w *WordConfidence) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("word confidence: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("word confidence: want 2 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &w.Word); err != nil {
		return fmt.Errorf("word confidence word: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &w.Confidence); err != nil {
		return fmt.Errorf("word confidence value: %w", err)
	}
	return nil
}

// MarshalJSON encodes the tuple form.
func (w WordConfidence) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Word, w.Confidence})
}

// SpeakerLabel attributes one word to a speaker.
type SpeakerLabel struct {
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	Speaker    int     `json:"speaker"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"final"`
}

// ParseResults decodes a raw payload.
func ParseResults(raw []byte) (*Results, error) {
	var res Results
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode recognition results: %w", err)
	}
	return &res, nil
}

// HasResults reports whether the payload is a JSON object with a results field.
func HasResults(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	v, ok := fields["results"]
	return ok && string(v) != "null"
}
