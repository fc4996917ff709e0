package mq

import (
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
	ExchangeExperiments Exchange = "searchlab.experiments"
	ExchangeSchedules   Exchange = "searchlab.schedules"
)

// Queues — имена очередей.
const (
	QueueExperimentsFinished Queue = "experiments.finished"
)

// Routing keys.
const (
	RoutingKeyFinished RoutingKey = "finished"
	RoutingKeyChanged  RoutingKey = "changed"
)

// declareTopology объявляет топологию. Операции идемпотентны.
// Очереди schedule.changed создаёт каждый scheduler-инстанс
// в Consumer (эксклюзивные, auto-delete).
func declareTopology(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeExperiments, amqp.ExchangeDirect},
		// fanout: событие нужно каждому scheduler-инстансу.
		{ExchangeSchedules, amqp.ExchangeFanout},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	if _, err := ch.QueueDeclare(string(QueueExperimentsFinished), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueExperimentsFinished, err)
	}

	err := ch.QueueBind(
		string(QueueExperimentsFinished),
		string(RoutingKeyFinished),
		string(ExchangeExperiments),
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueExperimentsFinished, ExchangeExperiments, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Searchlab RabbitMQ Topology:

    searchlab.experiments (direct)
    └── experiments.finished [routing: finished]
            Consumer: searchlab-api (run log, finished events metric)

    searchlab.schedules (fanout)
    └── <exclusive queue per scheduler instance>
            Consumer: searchlab-scheduler (cron re-sync, cancel on unschedule)
  `
}
