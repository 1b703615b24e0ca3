// Package notify forwards job status changes to an AMQP topic exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"transcript-server/internal/domain"
	"transcript-server/internal/jobs"
	"transcript-server/internal/logging"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message is the JSON body of a status notification.
type Message struct {
	User      string           `json:"userId"`
	Project   string           `json:"projectId"`
	Status    domain.JobStatus `json:"status"`
	Removed   bool             `json:"removed,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher implements jobs.Listener. Changes are queued and published by a
// background goroutine; when the queue is full the change is dropped.
type Publisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	log      logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan jobs.Change
	done   chan struct{}
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string, log logrus.FieldLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange, 256, log)
	p.conn = conn
	return p, nil
}

// NewPublisher starts publishing on an open channel.
func NewPublisher(ch Channel, exchange string, buffer int, log logrus.FieldLogger) *Publisher {
	if buffer < 1 {
		buffer = 1
	}
	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		log:      logging.OrDiscard(log),
		queue:    make(chan jobs.Change, buffer),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

// StatusChanged queues a change without blocking.
func (p *Publisher) StatusChanged(c jobs.Change) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- c:
	default:
		p.log.WithFields(logrus.Fields{"user": c.User, "project": c.Project}).Warn("status notification dropped")
	}
}

// Close flushes queued changes and closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RoutingKey is transcript.status.<stage>, or transcript.status.removed.
func RoutingKey(c jobs.Change) string {
	if c.Removed {
		return "transcript.status.removed"
	}
	return "transcript.status." + string(c.Status.Stage)
}

func (p *Publisher) loop() {
	defer close(p.done)
	for c := range p.queue {
		if err := p.publish(c); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{"user": c.User, "project": c.Project}).Warn("publish status notification")
		}
	}
}

func (p *Publisher) publish(c jobs.Change) error {
	body, err := json.Marshal(Message{
		User:      c.User,
		Project:   c.Project,
		Status:    c.Status,
		Removed:   c.Removed,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(c), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
