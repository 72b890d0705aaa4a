package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/freshmart/storefront/internal/cart"
)

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// Publisher emits storefront analytics events on a topic exchange. Events
// are advisory; callers treat publish failures as log-and-continue.
type Publisher struct {
	ch        *amqp.Channel
	sequences SequenceRepository
}

func NewPublisher(conn *amqp.Connection, sequences SequenceRepository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{ch: ch, sequences: sequences}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishCartMerged(ctx context.Context, userID string, lines []cart.Line) error {
	seq, err := p.sequences.NextSequence(ctx, userID)
	if err != nil {
		return err
	}

	env := newEnvelope(CartMergedEventName, userID, seq, CartMergedPayload{
		UserID: userID,
		Items:  lines,
	})
	return p.publishJSON(ctx, CartMergedRoutingKey, env)
}

func (p *Publisher) PublishUserSignedUp(ctx context.Context, userID, email string) error {
	seq, err := p.sequences.NextSequence(ctx, userID)
	if err != nil {
		return err
	}

	env := newEnvelope(UserSignedUpEventName, userID, seq, UserSignedUpPayload{
		UserID: userID,
		Email:  email,
	})
	return p.publishJSON(ctx, UserSignedUpRoutingKey, env)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.EventName, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
