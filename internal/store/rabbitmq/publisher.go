package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/personapal/internal/chat"
)

const attemptHeader = "x-attempt"

type Publisher struct {
	conn  *amqp.Connection
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareQueues sets up the main queue with its retry and dead-letter
// companions. Publisher and worker both call it so either may start first.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := RetryQueue(queue)
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	); err != nil {
		return err
	}

	return nil
}

func RetryQueue(queue string) string { return queue + ".retry" }

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishPersist enqueues one transcript write for the worker.
func (p *Publisher) PublishPersist(ctx context.Context, job chat.PersistJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.queue, body, nil, "")
}

// PublishRetry parks body on the retry queue; it dead-letters back onto the
// main queue once delay has passed.
func (p *Publisher) PublishRetry(ctx context.Context, body []byte, attempt int, delay time.Duration) error {
	return p.publish(ctx, RetryQueue(p.queue), body,
		amqp.Table{attemptHeader: int32(attempt)},
		strconv.FormatInt(delay.Milliseconds(), 10),
	)
}

// Attempt reads how many times a delivery has already been retried.
func Attempt(d amqp.Delivery) int {
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte, headers amqp.Table, expiration string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Expiration:   expiration,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
