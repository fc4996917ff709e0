// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (сервисы, репозитории, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - experiment_handler.go — обработчики для /experiments
//   - schedule_handler.go   — обработчики для /schedules
//   - input_handler.go      — наборы запросов, конфигурации поиска, judgments
//
// Создание эксперимента отвечает 202: эксперимент выполняется в фоне,
// статус читается через GET /api/v1/experiments/{id}.
package api
