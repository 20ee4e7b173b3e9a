// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий runs
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested — run создан и ожидает агента
//   - run.finished  — run завершён (итог, номер сборки)
//
// Exchanges:
//   - shipyard.runs — события runs
//   - shipyard.dlq  — dead letter queue
package mq
