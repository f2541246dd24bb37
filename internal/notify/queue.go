package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/tinoosan/billy/internal/errs"
)

// defaultRetryDelay is how long a failed delivery waits before it is requeued.
const defaultRetryDelay = 5 * time.Second

// Queue publishes emails to RabbitMQ and consumes them in the worker.
type Queue struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	retryDelay   time.Duration
}

// acknowledger is the part of amqp091.Delivery that settles a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// WithRetryDelay sets the pause before a failed delivery is requeued.
func (q *Queue) WithRetryDelay(d time.Duration) *Queue {
	q.retryDelay = d
	return q
}

// OpenQueue dials the broker and declares a durable direct exchange bound to the queue.
func OpenQueue(url, exchangeName, queueName string) (*Queue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q := &Queue{conn: conn, channel: channel, exchangeName: exchangeName, queueName: queueName, retryDelay: defaultRetryDelay}
	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return q, nil
}

func (q *Queue) setup() error {
	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name
	if err := q.channel.QueueBind(q.queueName, q.queueName, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Send enqueues the email as a persistent JSON message.
func (q *Queue) Send(ctx context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = q.channel.PublishWithContext(ctx, q.exchangeName, q.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    e.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish: %v", errs.ErrDelivery, err)
	}
	slog.DebugContext(ctx, "email queued", "queue", q.queueName, "recipients", len(e.Recipients))
	return nil
}

// Consume hands each queued email to next until ctx is cancelled.
// Undecodable or invalid messages are dropped; delivery failures are requeued
// after the retry delay.
func (q *Queue) Consume(ctx context.Context, next Notifier) error {
	msgs, err := q.channel.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	slog.InfoContext(ctx, "consuming email queue", "queue", q.queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			q.deliver(ctx, d.Body, d, next)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, body []byte, ack acknowledger, next Notifier) {
	e, err := EmailFromJSON(body)
	if err == nil {
		err = e.Validate()
	}
	if err != nil {
		slog.ErrorContext(ctx, "dropping email message", "err", err)
		_ = ack.Nack(false, false)
		return
	}
	if err := next.Send(ctx, e); err != nil {
		slog.ErrorContext(ctx, "email delivery failed", "err", err, "subject", e.Subject, "retry_in", q.retryDelay)
		// the broker redelivers a requeued message at once
		t := time.NewTimer(q.retryDelay)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
	slog.InfoContext(ctx, "email delivered", "subject", e.Subject, "recipients", len(e.Recipients))
}

// Ready reports whether the connection is still open.
func (q *Queue) Ready(context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
