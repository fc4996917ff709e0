// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление событий
//
// Типы сообщений:
//   - experiment.finished — эксперимент дошёл до COMPLETED или ERROR
//   - schedule.changed    — расписание создано или удалено
//
// Exchanges:
//   - searchlab.experiments — события экспериментов (direct)
//   - searchlab.schedules   — события расписаний (fanout, по очереди на scheduler)
//
// RabbitMQ опционален: без него бинарники работают, события просто не публикуются,
// а scheduler подхватывает изменения расписаний периодической синхронизацией.
package mq
