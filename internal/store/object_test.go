package store

import "testing"

// TestObjectNameRoundTrip verifies object names map back to their key and kind.
func TestObjectNameRoundTrip(t *testing.T) {
	key := Key{User: "alice", Project: "p-1"}
	name := objectName(key, KindRaw)
	if name != "alice/p-1/raw.json" {
		t.Fatalf("objectName = %q", name)
	}
	gotKey, gotKind, ok := parseObjectName(name)
	if !ok || gotKey != key || gotKind != KindRaw {
		t.Fatalf("parseObjectName = %+v %q %v", gotKey, gotKind, ok)
	}
}

// TestParseObjectNameRejectsForeignObjects ignores names outside the layout.
func TestParseObjectNameRejectsForeignObjects(t *testing.T) {
	for _, name := range []string{"raw.json", "alice/raw.json", "a/b/c/raw.json", "al ice/p/raw.json"} {
		if _, _, ok := parseObjectName(name); ok {
			t.Fatalf("parseObjectName(%q) accepted", name)
		}
	}
}

// TestContentType checks upload content types per kind.
func TestContentType(t *testing.T) {
	if got := contentType(KindWAV); got != "audio/wav" {
		t.Fatalf("wav content type = %q", got)
	}
	if got := contentType(KindMeta); got != "application/json" {
		t.Fatalf("meta content type = %q", got)
	}
	if got := contentType(Kind("bin")); got != "application/octet-stream" {
		t.Fatalf("unknown content type = %q", got)
	}
}
