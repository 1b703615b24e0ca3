package media

import (
	"context"
	"strings"
)

// Converter produces the canonical waveform: mono, signed 16-bit
// little-endian PCM at the source sample rate.
type Converter struct {
	ffmpegPath string
	runner     Runner
}

// NewConverter creates a converter invoking the given ffmpeg binary.
func NewConverter(ffmpegPath string, runner Runner) *Converter {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Converter{ffmpegPath: ffmpegPath, runner: runner}
}

// ToWAV converts inputPath into a WAV file at outPath.
func (c *Converter) ToWAV(ctx context.Context, inputPath, outPath string) (CommandLog, error) {
	args := buildConvertArgs(inputPath, outPath)
	res, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	log := newCommandLog(c.ffmpegPath, args, res)
	if err != nil {
		return log, &ToolError{
			Tool:       c.ffmpegPath,
			Diagnostic: diagnostic(res, err),
			Log:        log,
			Err:        err,
		}
	}
	return log, nil
}

// buildConvertArgs drops video, downmixes to mono and keeps the sample rate.
func buildConvertArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
