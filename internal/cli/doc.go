// Package cli реализует инструмент командной строки searchlab.
//
// CLI работает с Searchlab API по HTTP и не импортирует внутренние пакеты:
// типы ответов продублированы в client.go.
//
// Команды сгруппированы по ресурсам:
//   - experiment: list, create, show, delete, history
//   - schedule: list, create, show, delete
//   - query-set: create, show
//
// Каждая группа создаётся фабрикой (NewExperimentCmd и т.д.), которая
// принимает clientFn и outputFn. Client и Output создаются лениво,
// после разбора PersistentFlags (--api-url, --json).
//
// Данные идут в stdout, сообщения в stderr:
//
//	searchlab experiment list --status COMPLETED --json | jq '.[].id'
package cli
