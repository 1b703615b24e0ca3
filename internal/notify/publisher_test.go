package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// fakeChannel records publishes.
type fakeChannel struct {
	mu     sync.Mutex
	out    []published
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// TestPublisherForwardsStoreChanges verifies routing keys and message bodies.
func TestPublisherForwardsStoreChanges(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "transcripts", 8, nil)
	store := jobs.NewStatusStore(jobs.WithListener(pub))

	store.Put("alice", "p1", domain.Ongoing("conversion started"))
	store.Put("alice", "p1", domain.Succeeded(""))
	store.Reconcile("alice", nil)
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !ch.closed {
		t.Fatal("channel not closed")
	}
	wantKeys := []string{"transcript.status.ongoing", "transcript.status.succeeded", "transcript.status.removed"}
	if len(ch.out) != len(wantKeys) {
		t.Fatalf("published = %d, want %d", len(ch.out), len(wantKeys))
	}
	for i, key := range wantKeys {
		if ch.out[i].key != key || ch.out[i].exchange != "transcripts" {
			t.Fatalf("publish %d = %s/%s", i, ch.out[i].exchange, ch.out[i].key)
		}
	}

	var msg Message
	if err := json.Unmarshal(ch.out[0].msg.Body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.User != "alice" || msg.Project != "p1" || msg.Status.Detail != "conversion started" {
		t.Fatalf("message = %+v", msg)
	}
}

// TestPublisherIgnoresChangesAfterClose verifies Close is final.
func TestPublisherIgnoresChangesAfterClose(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "x", 1, nil)
	_ = pub.Close()
	pub.StatusChanged(jobs.Change{User: "u", Project: "p"})
	if err := pub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(ch.out) != 0 {
		t.Fatalf("published = %d, want 0", len(ch.out))
	}
}
