package orchestrator

import (
	"sort"
	"sync"

	"github.com/shaiso/Searchlab/internal/domain"
)

// runState — результаты одного запуска в памяти.
//
// Подзадачи пишут только сюда; документ эксперимента обновляется
// один раз, после завершения всех подзадач.
type runState struct {
	mu      sync.Mutex
	results []domain.ExperimentResult
	failed  int
	skipped int
}

func newRunState(capacity int) *runState {
	return &runState{results: make([]domain.ExperimentResult, 0, capacity)}
}

// add сохраняет результат подзадачи.
func (s *runState) add(res domain.ExperimentResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	if res.Error != "" {
		s.failed++
	}
}

// skip отмечает подзадачу, пропущенную из-за отмены.
func (s *runState) skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// snapshot возвращает результаты в детерминированном порядке.
func (s *runState) snapshot() (results []domain.ExperimentResult, failed, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results = make([]domain.ExperimentResult, len(s.results))
	copy(results, s.results)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].QueryText != results[j].QueryText {
			return results[i].QueryText < results[j].QueryText
		}
		return resultKey(results[i]) < resultKey(results[j])
	})
	return results, s.failed, s.skipped
}

func resultKey(r domain.ExperimentResult) string {
	switch {
	case r.VariantID != nil:
		return r.VariantID.String()
	case r.SearchConfigurationID != nil:
		return r.SearchConfigurationID.String()
	default:
		return ""
	}
}
