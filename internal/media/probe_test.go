package media

import (
	"context"
	"errors"
	"testing"
)

// fakeRunner simulates command execution outcomes.
type fakeRunner struct {
	run   func(ctx context.Context, name string, args ...string) (CommandResult, error)
	calls int
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	f.calls++
	if f.run == nil {
		return CommandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

func stdoutRunner(out string) *fakeRunner {
	return &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
		return CommandResult{Stdout: out}, nil
	}}
}

// TestProbeReadsStringFields checks ffprobe's string-encoded numbers.
func TestProbeReadsStringFields(t *testing.T) {
	probe := NewProbe("ffprobe", stdoutRunner(`{"streams":[{"sample_rate":"44100","duration":"12.500000"}]}`), nil)

	if got := probe.SampleRate(context.Background(), "a.wav"); got != 44100 {
		t.Fatalf("sample rate = %d, want 44100", got)
	}
	if got := probe.Duration(context.Background(), "a.wav"); got != 12.5 {
		t.Fatalf("duration = %v, want 12.5", got)
	}
}

// TestProbeReadsNumericFields checks plain JSON numbers.
func TestProbeReadsNumericFields(t *testing.T) {
	probe := NewProbe("", stdoutRunner(`{"streams":[{"sample_rate":8000,"duration":3}]}`), nil)

	if got := probe.SampleRate(context.Background(), "a.wav"); got != 8000 {
		t.Fatalf("sample rate = %d, want 8000", got)
	}
	if got := probe.Duration(context.Background(), "a.wav"); got != 3 {
		t.Fatalf("duration = %v, want 3", got)
	}
}

// TestProbeUnknownOnFailure verifies failures become sentinels, not errors.
func TestProbeUnknownOnFailure(t *testing.T) {
	cases := map[string]*fakeRunner{
		"tool error": {run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
			return CommandResult{ExitCode: 1}, errors.New("exit status 1")
		}},
		"invalid json":   stdoutRunner("not json"),
		"no streams":     stdoutRunner(`{"streams":[]}`),
		"missing fields": stdoutRunner(`{"streams":[{}]}`),
		"n/a fields":     stdoutRunner(`{"streams":[{"sample_rate":"N/A","duration":"N/A"}]}`),
	}

	for name, runner := range cases {
		probe := NewProbe("ffprobe", runner, nil)
		if got := probe.SampleRate(context.Background(), "a.wav"); got != UnknownSampleRate {
			t.Fatalf("%s: sample rate = %d, want unknown", name, got)
		}
		if got := probe.Duration(context.Background(), "a.wav"); got != UnknownDuration {
			t.Fatalf("%s: duration = %v, want unknown", name, got)
		}
	}
}

// TestProbeSpawnsOneProcessPerCall checks there are no retries.
func TestProbeSpawnsOneProcessPerCall(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
		return CommandResult{}, errors.New("boom")
	}}
	probe := NewProbe("ffprobe", runner, nil)
	probe.SampleRate(context.Background(), "a.wav")

	if runner.calls != 1 {
		t.Fatalf("calls = %d, want 1", runner.calls)
	}
}
