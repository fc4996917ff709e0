// Searchlab API — HTTP API для экспериментов по качеству поиска.
//
// API:
//   - Принимает эксперименты и запускает их в фоне (202 Accepted)
//   - Ставит эксперименты на расписание и снимает с него
//   - Удаляет эксперименты каскадом (результаты, варианты, расписание, история)
//   - Читает experiment.finished из очереди experiments.finished (лог, метрика)
//
// Сами запланированные запуски выполняет searchlab-scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Searchlab/internal/api"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/scheduler"
	"github.com/shaiso/Searchlab/internal/search"
	"github.com/shaiso/Searchlab/internal/settings"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger("searchlab-api")
	logger.Info("starting searchlab-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Настройки с горячей перезагрузкой
	store, err := settings.Open(settings.Path(), logger)
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := store.Watch(ctx); err != nil {
			logger.Warn("settings watcher stopped", "error", err)
		}
	}()

	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	experimentRepo := repo.NewExperimentRepo(pool)
	querySetRepo := repo.NewQuerySetRepo(pool)
	searchConfigRepo := repo.NewSearchConfigRepo(pool)
	judgmentRepo := repo.NewJudgmentRepo(pool)
	evaluationRepo := repo.NewEvaluationRepo(pool)
	variantRepo := repo.NewVariantRepo(pool)
	jobRepo := repo.NewJobRepo(pool)
	historyRepo := repo.NewHistoryRepo(pool)

	runnerCfg := orchestrator.RunnerConfig{
		Experiments:   experimentRepo,
		QuerySets:     querySetRepo,
		SearchConfigs: searchConfigRepo,
		Judgments:     judgmentRepo,
		Evaluations:   evaluationRepo,
		Variants:      variantRepo,
		Searcher:      search.NewClient(store, nil),
		Settings:      store,
		Logger:        logger,
	}
	deleterCfg := orchestrator.DeleterConfig{
		Experiments: experimentRepo,
		Evaluations: evaluationRepo,
		Variants:    variantRepo,
		Jobs:        jobRepo,
		History:     historyRepo,
		Logger:      logger,
	}
	scheduleCfg := scheduler.ServiceConfig{
		Validator:   scheduler.NewValidator(store),
		Experiments: experimentRepo,
		Jobs:        jobRepo,
		History:     historyRepo,
		Logger:      logger,
	}

	// RabbitMQ опционален: без него scheduler подхватит расписания синхронизацией
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{
		Name:            "searchlab-api",
		DeclareTopology: true,
		Logger:          logger,
	})
	if err != nil {
		logger.Warn("RabbitMQ not available, events disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		logger.Debug("amqp topology declared", "topology", mq.TopologyInfo())

		publisher := mq.NewPublisher(mqConn, logger)
		runnerCfg.Publisher = publisher
		deleterCfg.Notifier = publisher
		scheduleCfg.Notifier = publisher

		finished := orchestrator.NewFinishedEvents(logger, telemetry.FinishedEventsConsumed)
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueExperimentsFinished,
			Types:    []mq.MessageType{mq.MessageTypeExperimentFinished},
			Handler:  finished.Handle,
			Prefetch: 10,
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("finished events consumer stopped", "error", err)
			}
		}()
	}

	experiments := orchestrator.NewService(orchestrator.ServiceConfig{
		Runner:        orchestrator.NewRunner(runnerCfg),
		Deleter:       orchestrator.NewDeleter(deleterCfg),
		Experiments:   experimentRepo,
		Lister:        experimentRepo,
		QuerySets:     querySetRepo,
		SearchConfigs: searchConfigRepo,
		Judgments:     judgmentRepo,
		Logger:        logger,
	})

	handler := api.NewHandler(api.Config{
		Experiments:   experiments,
		Schedules:     scheduler.NewService(scheduleCfg),
		QuerySets:     querySetRepo,
		SearchConfigs: searchConfigRepo,
		Judgments:     judgmentRepo,
		Evaluations:   evaluationRepo,
		Logger:        logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}
	opsAddr := ":9090"
	if v := os.Getenv("OPS_PORT"); v != "" {
		opsAddr = ":" + v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go telemetry.ServeOps(ctx, opsAddr, logger)

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// Фоновые запуски отменяются и успевают записать итог
	if err := experiments.Shutdown(shutdownCtx); err != nil {
		logger.Error("experiment runs did not stop in time", "error", err)
	}

	logger.Info("stopped")
}
