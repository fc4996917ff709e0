// Package scheduler запускает эксперименты по cron-расписаниям.
//
// Структура:
//   - cron.go        — проверка cron-выражений (Validator) и вычисление срабатываний
//   - trigger.go     — хост-планировщик на robfig/cron: по записи на активный job
//   - jobrunner.go   — один запуск: блокировка, токен, таймаут, cleanup
//   - coordinator.go — загрузка эксперимента, Runner, запись истории
//   - service.go     — создание и удаление расписаний (API)
//
// Использование:
//
//	runner := scheduler.NewJobRunner(scheduler.JobRunnerConfig{
//	    Locks:       lock.NewAdvisory(pool, logger),
//	    Coordinator: coordinator,
//	    Settings:    store,
//	    Logger:      logger,
//	})
//	trigger := scheduler.NewTrigger(scheduler.TriggerConfig{
//	    Jobs:     jobRepo,
//	    Executor: runner,
//	    Settings: store,
//	    Logger:   logger,
//	})
//	trigger.Start(ctx)
//
// Несколько инстансов:
//
// Каждый инстанс держит свои cron-записи и срабатывает независимо.
// Взаимное исключение обеспечивает pg_try_advisory_lock в JobRunner:
// запуск выполняет тот инстанс, который первым взял блокировку.
package scheduler
