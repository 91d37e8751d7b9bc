// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений с бюджетом повторов и DLQ
//
// Типы сообщений:
//   - artifact.process  — команда прогнать пайплайн для артефакта
//   - pipeline.updated  — уведомление о смене статуса пайплайна
//
// Exchanges:
//   - bindery.artifacts — команды обработки
//   - bindery.events    — уведомления (fanout)
//   - bindery.dlq       — dead letter queue
package mq
