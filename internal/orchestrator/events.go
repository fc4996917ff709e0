package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Searchlab/internal/mq"
)

// FinishedEvents читает experiment.finished из очереди experiments.finished:
// логирует итог запуска и считает события по типу, статусу и источнику.
type FinishedEvents struct {
	logger *slog.Logger
	events *prometheus.CounterVec
}

// NewFinishedEvents создаёт обработчик. events должен иметь метки
// type, status, scheduled (см. telemetry.FinishedEventsConsumed).
func NewFinishedEvents(logger *slog.Logger, events *prometheus.CounterVec) *FinishedEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &FinishedEvents{logger: logger, events: events}
}

// Handle — mq.Handler для experiment.finished.
func (f *FinishedEvents) Handle(_ context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.ExperimentFinishedPayload](msg)
	if err != nil {
		return fmt.Errorf("parse experiment.finished: %w", err)
	}

	f.events.WithLabelValues(payload.Type, payload.Status, strconv.FormatBool(payload.Scheduled)).Inc()

	attrs := []any{
		"experiment_id", payload.ExperimentID,
		"type", payload.Type,
		"status", payload.Status,
		"scheduled", payload.Scheduled,
	}
	if payload.Error != "" {
		f.logger.Warn("experiment run finished with error", append(attrs, "error", payload.Error)...)
		return nil
	}
	f.logger.Info("experiment run finished", attrs...)
	return nil
}
