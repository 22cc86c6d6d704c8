// Package alarm delivers internal-failure alarms to operators.
package alarm

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/domain"
)

const dialAttempts = 3

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes alarms to a topic exchange under
// "alarms.<caller>".
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	log      zerolog.Logger
}

func NewRabbitPublisher(url, exchange string, log zerolog.Logger) (*RabbitPublisher, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("failed to connect to RabbitMQ, retrying in 2s... (%d/%d)", i+1, dialAttempts)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func RoutingKey(caller string) string { return "alarms." + caller }

func (p *RabbitPublisher) ReportAlarm(ctx context.Context, a domain.Alarm) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(a.Caller),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    a.Time,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish alarm: %w", err)
	}

	p.log.Debug().Str("what", a.What).Msg("published alarm")
	return nil
}

func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
