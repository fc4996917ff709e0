package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы запланированного запуска для ScheduledRuns.
const (
	OutcomeCompleted   = "completed"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeLockSkipped = "lock_skipped"
)

var (
	// ExperimentsFinished — эксперименты, дошедшие до терминального статуса.
	ExperimentsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchlab_experiments_finished_total",
		Help: "Experiments that reached a terminal status.",
	}, []string{"type", "status"})

	// FinishedEventsConsumed — события experiment.finished, прочитанные из очереди.
	FinishedEventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchlab_finished_events_consumed_total",
		Help: "experiment.finished events consumed from the experiments.finished queue.",
	}, []string{"type", "status", "scheduled"})

	// SubtaskDuration — длительность одной подзадачи (поиск + метрики).
	SubtaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchlab_subtask_duration_seconds",
		Help:    "Duration of a single experiment subtask.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// ScheduledRuns — запланированные запуски по исходу.
	ScheduledRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchlab_scheduled_runs_total",
		Help: "Scheduled experiment runs by outcome.",
	}, []string{"outcome"})

	// ActiveScheduledRuns — запуски, держащие блокировку прямо сейчас.
	ActiveScheduledRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "searchlab_active_scheduled_runs",
		Help: "Scheduled runs currently holding their lock.",
	})

	// CascadeDeleteFailures — неудачные каскадные удаления по типу записей.
	CascadeDeleteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchlab_cascade_delete_failures_total",
		Help: "Failed best-effort deletions of records dependent on a deleted experiment.",
	}, []string{"target"})
)

// ServeOps запускает HTTP-сервер с /healthz и /metrics и останавливает его
// при отмене ctx.
func ServeOps(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("ops http listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ops http server error", "error", err)
	}
}
