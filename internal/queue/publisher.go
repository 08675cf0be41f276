package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Publisher sends booking events to RabbitMQ.  It dials per publish, which
// keeps it free of connection state at the cost of latency; events are
// rare compared to availability reads.
type Publisher struct {
	URL string
	Log log.FieldLogger
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string, logger log.FieldLogger) *Publisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{URL: url, Log: logger}
}

// Publish sends ev to the booking.events queue as a persistent message.
// Errors are logged and returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	entry := p.Log.WithFields(log.Fields{"queue": BookingEventsQueue, "type": ev.Type, "booking_id": ev.BookingID})

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		BookingEventsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	); err != nil {
		entry.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.MessageID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                 // default exchange
		BookingEventsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		pub,
	); err != nil {
		entry.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	entry.Debug("rabbitmq: event published")
	return nil
}
