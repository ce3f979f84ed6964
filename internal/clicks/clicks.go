// Package clicks ships per-redirect click events through RabbitMQ to a
// batching worker. This feeds the link_engagements aggregate; the canonical
// visit_count on the link row is recorded synchronously by the resolver and
// does not depend on this pipeline.
package clicks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Event struct {
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

type Publisher struct {
	ch    *amqp091.Channel
	queue string
}

func NewPublisher(ch *amqp091.Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

// DeclareQueue sets up the durable click queue; both the API and the worker
// call it so either may start first.
func DeclareQueue(ch *amqp091.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
