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
	MessageTypeExperimentFinished MessageType = "experiment.finished"
	MessageTypeScheduleChanged    MessageType = "schedule.changed"
)

// Действия над расписанием в ScheduleChangedPayload.
const (
	ScheduleActionCreated = "created"
	ScheduleActionRemoved = "removed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
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

// ExperimentFinishedPayload — эксперимент дошёл до терминального статуса.
type ExperimentFinishedPayload struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Scheduled    bool      `json:"scheduled"`
	Error        string    `json:"error,omitempty"`
}

// ScheduleChangedPayload — расписание создано или удалено.
type ScheduleChangedPayload struct {
	JobID  uuid.UUID `json:"job_id"`
	Action string    `json:"action"`
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

// PublishExperimentFinished публикует событие о завершении эксперимента.
func (p *Publisher) PublishExperimentFinished(ctx context.Context, payload ExperimentFinishedPayload) error {
	return p.PublishJSON(ctx, ExchangeExperiments, RoutingKeyFinished, MessageTypeExperimentFinished, payload)
}

// PublishScheduleChanged публикует событие об изменении расписания.
// Потребитель: каждый searchlab-scheduler.
func (p *Publisher) PublishScheduleChanged(ctx context.Context, payload ScheduleChangedPayload) error {
	return p.PublishJSON(ctx, ExchangeSchedules, RoutingKeyChanged, MessageTypeScheduleChanged, payload)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
