package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась. Обычная ошибка считается
// временной: сообщение будет переиздано с инкрементом попытки. Ошибка,
// обёрнутая в Permanent, сразу уходит в DLQ без повторов.
type Handler func(ctx context.Context, msg *Delivery) error

// PermanentError — ошибка, при которой повторная обработка бессмысленна
// (артефакт не найден, битый payload). Сообщение сразу уходит в DLQ.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent оборачивает ошибку как безвозвратную.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent проверяет, является ли ошибка безвозвратной.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Delivery — доставленное сообщение с методами ack/nack.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Attempt — номер попытки обработки (с 1).
	Attempt int

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer потребляет сообщения из очереди RabbitMQ.
// Повторы при временных ошибках: сообщение переиздаётся с задержкой
// (экспоненциальный backoff) до maxAttempts, затем уходит в DLQ.
type Consumer struct {
	conn        *Connection
	publisher   *Publisher
	logger      *slog.Logger
	queue       Queue
	exchange    Exchange
	routingKey  RoutingKey
	handler     Handler
	prefetch    int
	maxAttempts int
	backoffBase time.Duration

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Exchange и RoutingKey — куда переиздавать сообщение при retry.
	Exchange   Exchange
	RoutingKey RoutingKey

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int

	// MaxAttempts — бюджет попыток обработки. По умолчанию 3.
	MaxAttempts int

	// BackoffBase — базовая задержка перед повтором. По умолчанию 1s.
	BackoffBase time.Duration
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, publisher *Publisher, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}

	return &Consumer{
		conn:        conn,
		publisher:   publisher,
		logger:      logger,
		queue:       cfg.Queue,
		exchange:    cfg.Exchange,
		routingKey:  cfg.RoutingKey,
		handler:     cfg.Handler,
		prefetch:    prefetch,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start запускает потребление сообщений.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	// Запускаем основной цикл потребления
	return c.consume(ctx)
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Получаем канал доставки
		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			// Ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue)

		// Обрабатываем сообщения
		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			// Канал закрыт, ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	// Устанавливаем prefetch
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// Начинаем потребление
	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
// Каждое сообщение уходит в свою горутину, параллелизм ограничен
// prefetch: задержка retry одного сообщения не тормозит остальные.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	sem := make(chan struct{}, c.prefetch)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			select {
			case <-ctx.Done():
				// Останавливаемся, не начиная обработку
				raw.Nack(false, true)
				return ctx.Err()
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				c.handleDelivery(ctx, raw)
			}()
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	// Парсим сообщение
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — отправляем в DLQ
		raw.Nack(false, false)
		return
	}

	delivery := &Delivery{
		Message: msg,
		Attempt: readAttempt(raw),
		Raw:     raw,
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
		"attempt", delivery.Attempt,
	)

	// Вызываем обработчик
	err := c.handler(ctx, delivery)
	if err == nil {
		// Успешно обработано
		raw.Ack(false)
		return
	}

	c.logger.Error("handler failed",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
		"attempt", delivery.Attempt,
		"error", err,
	)

	if IsPermanent(err) {
		// Повторять бессмысленно — сразу в DLQ
		raw.Nack(false, false)
		return
	}

	if delivery.Attempt >= c.maxAttempts {
		c.logger.Warn("retry budget exhausted, sending to DLQ",
			"queue", c.queue,
			"message_id", msg.ID,
			"attempts", delivery.Attempt,
		)
		raw.Nack(false, false)
		return
	}

	c.retryLater(ctx, delivery)
}

// retryLater переиздаёт сообщение с задержкой и инкрементом попытки.
// Исходное сообщение ack-ается: его копия уже ушла в очередь.
func (c *Consumer) retryLater(ctx context.Context, delivery *Delivery) {
	nextAttempt := delivery.Attempt + 1
	delay := c.backoffBase * time.Duration(1<<(delivery.Attempt-1))

	select {
	case <-ctx.Done():
		// Останавливаемся: возвращаем сообщение в очередь как есть
		delivery.Raw.Nack(false, true)
		return
	case <-time.After(delay):
	}

	if err := c.publisher.Republish(ctx, c.exchange, c.routingKey, &delivery.Message, nextAttempt); err != nil {
		c.logger.Error("failed to republish for retry",
			"queue", c.queue,
			"message_id", delivery.Message.ID,
			"error", err,
		)
		// Не смогли переиздать — возвращаем оригинал в очередь
		delivery.Raw.Nack(false, true)
		return
	}

	c.logger.Info("message scheduled for retry",
		"queue", c.queue,
		"message_id", delivery.Message.ID,
		"attempt", nextAttempt,
		"delay", delay,
	)
	delivery.Raw.Ack(false)
}

// readAttempt читает номер попытки из заголовков. Для сообщений без
// заголовка (legacy или сторонний publisher) считается первая попытка.
func readAttempt(raw amqp.Delivery) int {
	if raw.Headers == nil {
		return 1
	}
	switch v := raw.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload может быть уже распарсен как map или быть raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
