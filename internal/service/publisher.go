package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/queue"
)

// ErrPublishBufferFull is returned when events arrive faster than the
// broker accepts them.
var ErrPublishBufferFull = errors.New("event buffer full")

// AMQPPublisher queues ledger events in memory and delivers them to a
// durable RabbitMQ queue from Run. Publish never blocks a request on the
// broker.
type AMQPPublisher struct {
	url   string
	queue string
	buf   chan queue.Event
}

// NewAMQPPublisher returns a publisher for cfg buffering up to size events.
func NewAMQPPublisher(cfg config.AMQPConfig, size int) *AMQPPublisher {
	if size < 1 {
		size = 1024
	}
	return &AMQPPublisher{url: cfg.URL, queue: cfg.Queue, buf: make(chan queue.Event, size)}
}

// Publish enqueues ev for delivery.
func (p *AMQPPublisher) Publish(_ context.Context, ev queue.Event) error {
	select {
	case p.buf <- ev:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Run delivers queued events until ctx is cancelled, reconnecting with
// backoff when the broker is unreachable. An event that failed to send is
// retried on the next connection.
func (p *AMQPPublisher) Run(ctx context.Context) error {
	backoff := time.Second
	var carry *queue.Event
	for {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			slog.Warn("rabbitmq: dial failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !wait(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		carry, err = p.deliver(ctx, conn, carry)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("rabbitmq: publisher connection lost", slog.Any("error", err))
		if !wait(ctx, 2*time.Second) {
			return nil
		}
	}
}

// deliver publishes from the buffer on one connection. It returns the
// event that could not be sent, if any.
func (p *AMQPPublisher) deliver(ctx context.Context, conn *amqp.Connection, carry *queue.Event) (*queue.Event, error) {
	ch, err := conn.Channel()
	if err != nil {
		return carry, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return carry, fmt.Errorf("queue declare: %w", err)
	}
	if carry != nil {
		if err := p.publishOne(ctx, ch, *carry); err != nil {
			return carry, err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev := <-p.buf:
			if err := p.publishOne(ctx, ch, ev); err != nil {
				return &ev, err
			}
		}
	}
}

func (p *AMQPPublisher) publishOne(ctx context.Context, ch *amqp.Channel, ev queue.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		// unencodable events are dropped, retrying cannot help
		slog.Error("rabbitmq: marshal event failed", slog.String("type", ev.Type), slog.Any("error", err))
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(pctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
