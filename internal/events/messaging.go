package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange         = "storefront.events"
	CartMergedRoutingKey   = "cart.merged.v1"
	UserSignedUpRoutingKey = "user.signedup.v1"

	producerName = "storefront"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
