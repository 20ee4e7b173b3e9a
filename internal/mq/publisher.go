package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Shipyard/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunFinished  MessageType = "run.finished"
)

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

// RunRequestedPayload — payload сообщения о новом run.
type RunRequestedPayload struct {
	RunID       uuid.UUID `json:"run_id"`
	Pipeline    string    `json:"pipeline"`
	BuildNumber int64     `json:"build_number"`
}

// RunFinishedPayload — payload сообщения о завершении run.
type RunFinishedPayload struct {
	RunID       uuid.UUID      `json:"run_id"`
	Pipeline    string         `json:"pipeline"`
	BuildNumber int64          `json:"build_number"`
	Outcome     domain.Outcome `json:"outcome"`
	Error       string         `json:"error,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
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
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
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
		)
		return nil
	})
}

// PublishRunRequested публикует событие о run, ожидающем выполнения.
// Потребитель: Agent.
func (p *Publisher) PublishRunRequested(ctx context.Context, run *domain.PipelineRun) error {
	msg := NewMessage(MessageTypeRunRequested, RunRequestedPayload{
		RunID:       run.ID,
		Pipeline:    run.Pipeline,
		BuildNumber: run.BuildNumber,
	})
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg)
}

// PublishRunFinished публикует событие о завершении run.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.PipelineRun) error {
	msg := NewMessage(MessageTypeRunFinished, FinishedPayload(run))
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}

// FinishedPayload строит payload run.finished из завершённого run.
func FinishedPayload(run *domain.PipelineRun) RunFinishedPayload {
	return RunFinishedPayload{
		RunID:       run.ID,
		Pipeline:    run.Pipeline,
		BuildNumber: run.BuildNumber,
		Outcome:     run.Outcome,
		Error:       run.Error,
		DurationMS:  run.Duration().Milliseconds(),
	}
}
