package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
// Ошибка приводит к nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из RabbitMQ.
//
// Два режима:
//   - Queue задана — чтение из именованной durable-очереди;
//   - Exchange задан — на каждое (пере)подключение объявляется
//     эксклюзивная auto-delete очередь, привязанная к exchange.
//     Так каждый инстанс получает свою копию fanout-событий.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	exchange Exchange
	handler  Handler
	types    map[MessageType]bool
	prefetch int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Exchange — fanout exchange для эксклюзивной очереди инстанса.
	Exchange Exchange

	// Handler — обработчик сообщений.
	Handler Handler

	// Types — типы сообщений для Handler. Остальные подтверждаются
	// без обработки. Пустой список: все типы.
	Types []MessageType

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var types map[MessageType]bool
	if len(cfg.Types) > 0 {
		types = make(map[MessageType]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = true
		}
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		exchange: cfg.Exchange,
		handler:  cfg.Handler,
		types:    types,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения до отмены ctx, переподключаясь при разрывах.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deliveries, queue, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "exchange", c.exchange, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Info("consumer started", "queue", queue)

		c.processDeliveries(ctx, queue, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, string, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, "", fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, "", fmt.Errorf("set qos: %w", err)
	}

	queue := string(c.queue)
	if c.exchange != "" {
		q, err := ch.QueueDeclare(
			"",    // имя выдаст брокер
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return nil, "", fmt.Errorf("declare instance queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, "", string(c.exchange), false, nil); err != nil {
			return nil, "", fmt.Errorf("bind instance queue to %s: %w", c.exchange, err)
		}
		queue = q.Name
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, "", fmt.Errorf("consume: %w", err)
	}

	return deliveries, queue, nil
}

// processDeliveries обрабатывает сообщения, пока канал открыт.
func (c *Consumer) processDeliveries(ctx context.Context, queue string, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, queue, raw)
		}
	}
}

// disposition — что сделать с доставкой после обработки.
type disposition int

const (
	dispositionAck disposition = iota
	dispositionRequeue
	dispositionDrop
)

// handleDelivery обрабатывает одно сообщение и подтверждает его.
func (c *Consumer) handleDelivery(ctx context.Context, queue string, raw amqp.Delivery) {
	switch c.dispatch(ctx, queue, raw.Body, raw.Redelivered) {
	case dispositionAck:
		_ = raw.Ack(false)
	case dispositionRequeue:
		_ = raw.Nack(false, true)
	case dispositionDrop:
		_ = raw.Nack(false, false)
	}
}

// dispatch декодирует тело и вызывает Handler.
// Битые сообщения отбрасываются. Ошибка Handler возвращает сообщение
// в очередь один раз, повторная доставка с ошибкой отбрасывается.
func (c *Consumer) dispatch(ctx context.Context, queue string, body []byte, redelivered bool) disposition {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "queue", queue, "error", err, "body", string(body))
		return dispositionDrop
	}

	if c.types != nil && !c.types[msg.Type] {
		c.logger.Debug("skipping message type", "queue", queue, "type", msg.Type)
		return dispositionAck
	}

	c.logger.Debug("received message", "queue", queue, "message_id", msg.ID, "type", msg.Type)

	if err := c.handler(ctx, &msg); err != nil {
		c.logger.Error("handler failed",
			"queue", queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"redelivered", redelivered,
			"error", err,
		)
		if redelivered {
			return dispositionDrop
		}
		return dispositionRequeue
	}

	return dispositionAck
}

// ParsePayload приводит payload сообщения к типу T.
// Payload полученного сообщения — map[string]any, отправленного — сам T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if typed, ok := msg.Payload.(T); ok {
		return typed, nil
	}

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
