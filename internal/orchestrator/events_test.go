package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/shaiso/Searchlab/internal/mq"
)

func newFinishedCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_finished_events_total"},
		[]string{"type", "status", "scheduled"})
}

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

// --- FinishedEvents Tests ---

func TestFinishedEvents_Handle_FromWire(t *testing.T) {
	var logs bytes.Buffer
	counter := newFinishedCounter()
	events := NewFinishedEvents(slog.New(slog.NewTextHandler(&logs, nil)), counter)

	expID := uuid.New()
	body, err := json.Marshal(&mq.Message{
		ID:   uuid.NewString(),
		Type: mq.MessageTypeExperimentFinished,
		Payload: mq.ExperimentFinishedPayload{
			ExperimentID: expID,
			Type:         "POINTWISE_EVALUATION",
			Status:       "COMPLETED",
			Scheduled:    true,
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var msg mq.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if err := events.Handle(context.Background(), &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, counter, "POINTWISE_EVALUATION", "COMPLETED", "true"); got != 1 {
		t.Errorf("expected 1 event counted, got %v", got)
	}
	if !strings.Contains(logs.String(), expID.String()) {
		t.Errorf("expected experiment id in log, got %q", logs.String())
	}
}

func TestFinishedEvents_Handle_ErrorStatus(t *testing.T) {
	var logs bytes.Buffer
	counter := newFinishedCounter()
	events := NewFinishedEvents(slog.New(slog.NewTextHandler(&logs, nil)), counter)

	err := events.Handle(context.Background(), &mq.Message{Payload: mq.ExperimentFinishedPayload{
		ExperimentID: uuid.New(),
		Type:         "PAIRWISE_COMPARISON",
		Status:       "ERROR",
		Error:        "search backend unavailable",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, counter, "PAIRWISE_COMPARISON", "ERROR", "false"); got != 1 {
		t.Errorf("expected 1 event counted, got %v", got)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "search backend unavailable") {
		t.Errorf("expected warning with run error, got %q", logs.String())
	}
}

func TestFinishedEvents_Handle_Malformed(t *testing.T) {
	events := NewFinishedEvents(testLogger(), newFinishedCounter())

	err := events.Handle(context.Background(), &mq.Message{Payload: map[string]any{"experiment_id": 42}})
	if err == nil {
		t.Error("expected error for malformed payload")
	}
}
