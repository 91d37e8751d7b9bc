package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	// MessageTypeArtifactProcess — команда прогнать пайплайн для артефакта.
	MessageTypeArtifactProcess MessageType = "artifact.process"

	// MessageTypePipelineUpdated — уведомление о смене статуса пайплайна.
	MessageTypePipelineUpdated MessageType = "pipeline.updated"
)

// attemptHeader — заголовок с номером попытки обработки (с 1).
// Consumer переиздаёт сообщение с инкрементом до исчерпания бюджета.
const attemptHeader = "x-bindery-attempt"

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ArtifactProcessPayload — payload команды обработки артефакта.
type ArtifactProcessPayload struct {
	ArtifactID uuid.UUID `json:"artifact_id"`
}

// PipelineUpdatedPayload — payload уведомления для дашборда.
type PipelineUpdatedPayload struct {
	ArtifactID  uuid.UUID `json:"artifact_id"`
	ExecutionID uuid.UUID `json:"execution_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
// attempt > 0 попадает в заголовок для учёта повторных обработок.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, attempt int) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var headers amqp.Table
	if attempt > 0 {
		headers = amqp.Table{attemptHeader: int32(attempt)}
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Headers:      headers,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"attempt", attempt,
		)
		return nil
	})
}

// PublishArtifactProcess публикует команду прогнать пайплайн.
// Потребитель: Worker. attempt=1 для свежих команд.
func (p *Publisher) PublishArtifactProcess(ctx context.Context, artifactID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeArtifactProcess,
		Payload:   ArtifactProcessPayload{ArtifactID: artifactID},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeArtifacts, RoutingKeyProcess, msg, 1)
}

// Republish переиздаёт сообщение с указанным номером попытки.
func (p *Publisher) Republish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, attempt int) error {
	return p.Publish(ctx, exchange, routingKey, msg, attempt)
}

// PublishPipelineUpdated рассылает уведомление подписчикам дашборда.
func (p *Publisher) PublishPipelineUpdated(ctx context.Context, payload PipelineUpdatedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypePipelineUpdated,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	// fanout: routing key игнорируется
	return p.Publish(ctx, ExchangeEvents, "", msg, 0)
}
