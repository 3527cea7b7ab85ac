package telemetry

import (
	"context"
	"fmt"
	"strings"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"gocloud.dev/pubsub"
)

// isAMQPURL reports whether busURL names a real RabbitMQ broker
// rather than an in-process gocloud.dev test topic.
func isAMQPURL(busURL string) bool {
	return strings.HasPrefix(busURL, "amqp://") || strings.HasPrefix(busURL, "amqps://")
}

// amqpTopic is a direct amqp091-go producer for one gateway topic,
// modeled as a durable topic exchange so gateway-telemetry,
// gateway-errors, and gateway-routes each get their own exchange and
// every event's routing key is its route id (or "unknown"), so
// consumers partition the stream by route.
// Publisher confirms are enabled so Send only returns once the broker
// has acked the message (the "leader ack" policy), and the channel is
// put into confirm mode exactly once at open time so the gateway's
// own retries never double-declare the exchange.
type amqpTopic struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
	confirms <-chan amqp091.Confirmation
}

// openAMQPTopic dials busURL and declares a topic exchange named
// after topicName, ready to publish to with routing-key-per-event.
func openAMQPTopic(ctx context.Context, busURL, topicName string) (busTopic, error) {
	conn, err := amqp091.DialConfig(busURL, amqp091.Config{})
	if err != nil {
		return nil, fmt.Errorf("telemetry: amqp dial %s: %w", topicName, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("telemetry: amqp channel %s: %w", topicName, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("telemetry: amqp confirm mode %s: %w", topicName, err)
	}
	if err := ch.ExchangeDeclare(topicName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("telemetry: amqp exchange declare %s: %w", topicName, err)
	}
	return &amqpTopic{
		conn:     conn,
		ch:       ch,
		exchange: topicName,
		confirms: ch.NotifyPublish(make(chan amqp091.Confirmation, 1)),
	}, nil
}

// Send publishes m.Body to the exchange, routed by the event's key
// (metadata["key"], i.e. route id or "unknown"), waiting for the
// broker's publisher confirm before returning rather than firing and
// forgetting. A caller's retry after a confirm timeout publishes the
// message again, so the broker may then hold a duplicate.
func (t *amqpTopic) Send(ctx context.Context, m *pubsub.Message) error {
	routingKey := m.Metadata["key"]
	if routingKey == "" {
		routingKey = "unknown"
	}
	if err := t.ch.PublishWithContext(ctx, t.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         m.Body,
	}); err != nil {
		return fmt.Errorf("telemetry: amqp publish to %s: %w", t.exchange, err)
	}
	select {
	case confirm, ok := <-t.confirms:
		if !ok || !confirm.Ack {
			return fmt.Errorf("telemetry: amqp broker nacked publish to %s", t.exchange)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes the channel and connection.
func (t *amqpTopic) Shutdown(ctx context.Context) error {
	t.ch.Close()
	return t.conn.Close()
}
