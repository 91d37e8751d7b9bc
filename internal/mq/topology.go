package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeArtifacts — команды обработки артефактов.
	ExchangeArtifacts Exchange = "bindery.artifacts"

	// ExchangeEvents — fanout-уведомления для дашборда.
	ExchangeEvents Exchange = "bindery.events"

	// ExchangeDLQ — dead letter exchange.
	ExchangeDLQ Exchange = "bindery.dlq"
)

// Queues — имена очередей.
const (
	// QueueArtifactsProcess — артефакты, ожидающие прогона пайплайна.
	// Потребитель: Worker. После исчерпания retry — DLQ.
	QueueArtifactsProcess Queue = "artifacts.process"

	// QueueDLQArtifacts — DLQ для артефактов, которые не удалось обработать.
	QueueDLQArtifacts Queue = "dlq.artifacts"
)

// Routing keys.
const (
	RoutingKeyProcess      RoutingKey = "process"
	RoutingKeyDLQArtifacts RoutingKey = "artifacts"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентно: повторное объявление существующих сущностей безопасно.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeArtifacts, "direct"},
			{ExchangeEvents, "fanout"},
			{ExchangeDLQ, "direct"},
		}
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		// artifacts.process получает DLQ: после исчерпания retry
		// сообщение уходит в dlq.artifacts для ручного разбора.
		dlqArgs := amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQArtifacts),
		}

		queues := []struct {
			name Queue
			args amqp.Table
		}{
			{QueueArtifactsProcess, dlqArgs},
			{QueueDLQArtifacts, nil},
		}
		for _, q := range queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{
			{QueueArtifactsProcess, RoutingKeyProcess, ExchangeArtifacts},
			{QueueDLQArtifacts, RoutingKeyDLQArtifacts, ExchangeDLQ},
		}
		for _, b := range bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}
