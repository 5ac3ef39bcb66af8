// Package queue moves job invocations between the API and the workers
// over AMQP. The payload is deliberately tiny: just the job ID, with all
// job state living in the database.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/traduceo/translation-engine/internal/observability"
)

// DefaultQueue is the queue translation jobs travel on.
const DefaultQueue = "translation.jobs"

// jobMessage is the wire payload.
type jobMessage struct {
	JobID string `json:"jobId"`
}

// Publisher enqueues job invocations.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewPublisher connects, declares the durable queue, and returns a
// publisher bound to it.
func NewPublisher(url, queueName string) (*Publisher, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &Publisher{conn: conn, channel: ch, queue: queueName}, nil
}

// Enqueue publishes one job invocation.
func (p *Publisher) Enqueue(ctx context.Context, jobID string) error {
	body, err := json.Marshal(jobMessage{JobID: jobID})
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Runner executes one job. Implemented by the pipeline.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Consumer pulls job invocations off the queue and hands them to a
// Runner, one at a time.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	runner  Runner
	logger  *observability.Logger
}

// NewConsumer connects and declares the durable queue.
func NewConsumer(url, queueName string, runner Runner, logger *observability.Logger) (*Consumer, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, channel: ch, queue: queueName, runner: runner, logger: logger}, nil
}

// Start consumes until the context is cancelled or the channel closes.
// Malformed messages are dropped; runner failures are acknowledged too,
// since the pipeline records them on the job and a redelivery would just
// repeat the failure.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("queue consumer shutting down")
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				c.logger.Warn().Msg("amqp channel closed")
				return nil
			}

			var payload jobMessage
			if err := json.Unmarshal(msg.Body, &payload); err != nil || payload.JobID == "" {
				c.logger.Warn().Err(err).Msg("dropping malformed job message")
				msg.Nack(false, false)
				continue
			}

			if err := c.runner.Run(ctx, payload.JobID); err != nil {
				c.logger.Error().Err(err).Str("job_id", payload.JobID).Msg("job run failed")
			}
			msg.Ack(false)
		}
	}
}

// Close shuts down the channel and connection.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
