package media

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"transcript-server/internal/logging"
)

const (
	// UnknownSampleRate is returned when the sample rate cannot be determined.
	UnknownSampleRate = -1
	// UnknownDuration is returned when the duration cannot be determined.
	UnknownDuration = -1.0
)

// Probe queries audio metadata through ffprobe. Failures never surface as
// errors: absent data is reported with the Unknown sentinels.
type Probe struct {
	ffprobePath string
	runner      Runner
	log         logrus.FieldLogger
}

// NewProbe creates a probe invoking the given ffprobe binary.
func NewProbe(ffprobePath string, runner Runner, log logrus.FieldLogger) *Probe {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Probe{ffprobePath: ffprobePath, runner: runner, log: logging.OrDiscard(log)}
}

// SampleRate returns the first stream's sample rate in Hz.
func (p *Probe) SampleRate(ctx context.Context, path string) int {
	stream, ok := p.firstStream(ctx, path)
	if !ok {
		return UnknownSampleRate
	}
	rate, ok := parseNumber(stream.SampleRate)
	if !ok || rate <= 0 {
		return UnknownSampleRate
	}
	return int(rate)
}

// Duration returns the first stream's duration in seconds.
func (p *Probe) Duration(ctx context.Context, path string) float64 {
	stream, ok := p.firstStream(ctx, path)
	if !ok {
		return UnknownDuration
	}
	duration, ok := parseNumber(stream.Duration)
	if !ok || duration < 0 {
		return UnknownDuration
	}
	return duration
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	SampleRate json.RawMessage `json:"sample_rate"`
	Duration   json.RawMessage `json:"duration"`
}

// parseNumber accepts ffprobe numbers encoded as JSON numbers or strings.
// "N/A" and missing fields are reported as absent.
func parseNumber(raw json.RawMessage) (float64, bool) {
	text := strings.TrimSpace(string(bytes.Trim(raw, `"`)))
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p *Probe) firstStream(ctx context.Context, path string) (probeStream, bool) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-hide_banner",
		"-i", path,
	}

	res, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		p.log.WithFields(logrus.Fields{"path": path, "exit": res.ExitCode}).
			WithError(err).Warn("metadata probe failed")
		return probeStream{}, false
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		p.log.WithField("path", path).WithError(err).Warn("metadata probe returned invalid json")
		return probeStream{}, false
	}
	if len(out.Streams) == 0 {
		return probeStream{}, false
	}
	return out.Streams[0], true
}
