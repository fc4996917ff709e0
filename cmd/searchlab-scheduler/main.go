// Searchlab Scheduler — выполняет запланированные запуски экспериментов.
//
// Scheduler:
//   - Регистрирует включённые расписания в cron (Trigger)
//   - На срабатывании берёт advisory lock по ID job, чтобы один запуск
//     шёл только на одном инстансе
//   - Запускает эксперимент с таймаутом и пишет историю запусков
//   - Слушает schedule.changed и отменяет запуски удалённых расписаний
//
// Инстансов может быть несколько.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Searchlab/internal/lock"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/scheduler"
	"github.com/shaiso/Searchlab/internal/search"
	"github.com/shaiso/Searchlab/internal/settings"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger("searchlab-scheduler")
	logger.Info("starting searchlab-scheduler")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
	logger.Info("database connected")

	experimentRepo := repo.NewExperimentRepo(pool)
	jobRepo := repo.NewJobRepo(pool)
	historyRepo := repo.NewHistoryRepo(pool)

	runnerCfg := orchestrator.RunnerConfig{
		Experiments:   experimentRepo,
		QuerySets:     repo.NewQuerySetRepo(pool),
		SearchConfigs: repo.NewSearchConfigRepo(pool),
		Judgments:     repo.NewJudgmentRepo(pool),
		Evaluations:   repo.NewEvaluationRepo(pool),
		Variants:      repo.NewVariantRepo(pool),
		Searcher:      search.NewClient(store, nil),
		Settings:      store,
		Logger:        logger,
	}

	mqConn, err := mq.NewConnection(mq.ConnectionConfig{
		Name:            "searchlab-scheduler",
		DeclareTopology: true,
		Logger:          logger,
	})
	if err != nil {
		logger.Warn("RabbitMQ not available, relying on periodic sync", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		logger.Debug("amqp topology declared", "topology", mq.TopologyInfo())
		runnerCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	coordinator := scheduler.NewCoordinator(scheduler.CoordinatorConfig{
		Experiments: experimentRepo,
		Jobs:        jobRepo,
		History:     historyRepo,
		Runner:      orchestrator.NewRunner(runnerCfg),
		Logger:      logger,
	})

	jobRunner := scheduler.NewJobRunner(scheduler.JobRunnerConfig{
		Locks:       lock.NewAdvisory(pool, logger),
		Coordinator: coordinator,
		Settings:    store,
		Logger:      logger,
	})

	trigger := scheduler.NewTrigger(scheduler.TriggerConfig{
		Jobs:     jobRepo,
		Executor: jobRunner,
		Settings: store,
		Logger:   logger,
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Exchange: mq.ExchangeSchedules,
			Types:    []mq.MessageType{mq.MessageTypeScheduleChanged},
			Handler:  trigger.HandleScheduleChanged,
			Prefetch: 10,
		})
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("schedule consumer stopped", "error", err)
			}
		}()
	}

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}
	go telemetry.ServeOps(ctx, port, logger)

	// Start блокируется до отмены ctx и дожидается выполняющихся запусков
	if err := trigger.Start(ctx); err != nil {
		logger.Error("trigger stopped with error", "error", err)
	}

	logger.Info("searchlab-scheduler stopped")
}
