package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transcript-server/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestNormalizeCommandText renders a stored payload as text.
func TestNormalizeCommandText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.json")
	raw := `{"results":[{"alternatives":[{"timestamps":[["hi",0,0.3],["there",0.3,0.6]],"word_confidence":[["hi",0.9],["there",0.9]]}]}],
"speaker_labels":[{"from":0,"to":0.3,"speaker":0,"confidence":0.5},{"from":0.3,"to":0.6,"speaker":1,"confidence":0.5}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := execute(t, "normalize", path, "--format", "txt")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "Speaker default:\nhi\n\nSpeaker 1:\nthere\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}

	if _, err := execute(t, "normalize", path, "--format", "pdf"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

// TestConfigInitWritesDefaults checks the generated file loads back.
func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "server.yaml")
	out, err := execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("output = %q", out)
	}
	settings, err := config.NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.DefaultLanguage != "en" || settings.Workers.Count != 4 {
		t.Fatalf("settings = %+v", settings)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Fatal("expected error for existing file")
	}
}
