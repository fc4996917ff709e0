// Package orchestrator выполняет эксперименты по оценке качества поиска.
//
// Orchestrator отвечает за:
//   - Проверку и создание экспериментов (Service)
//   - Загрузку входных данных и раскладку на подзадачи по типу (Runner)
//   - Параллельное выполнение подзадач на ограниченном пуле
//   - Финализацию эксперимента (COMPLETED/ERROR) одной записью
//   - Удаление эксперимента с каскадом по зависимым записям (Deleter)
//
// Типы экспериментов:
//   - PAIRWISE_COMPARISON — сравнение выдачи двух конфигураций по каждому запросу
//   - POINTWISE_EVALUATION — метрики одной конфигурации по judgments
//   - HYBRID_OPTIMIZER — перебор параметров гибридного поиска
//
// Runner не знает о расписаниях: его вызывают Service (on-demand)
// и scheduler.Coordinator (по cron).
package orchestrator
