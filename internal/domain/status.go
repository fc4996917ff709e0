package domain

// ExperimentStatus — статус выполнения эксперимента.
//
// Жизненный цикл:
//
//	PROCESSING → COMPLETED
//	           ↘ ERROR
//
// Запланированный эксперимент при каждом срабатывании расписания
// снова переводится в PROCESSING.
type ExperimentStatus string

const (
	// ExperimentStatusProcessing — эксперимент создан и выполняется.
	ExperimentStatusProcessing ExperimentStatus = "PROCESSING"

	// ExperimentStatusCompleted — все подзадачи завершены.
	ExperimentStatusCompleted ExperimentStatus = "COMPLETED"

	// ExperimentStatusError — эксперимент завершился с ошибкой, по таймауту или был отменён.
	ExperimentStatusError ExperimentStatus = "ERROR"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExperimentStatus) IsTerminal() bool {
	switch s {
	case ExperimentStatusCompleted, ExperimentStatusError:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ExperimentStatus.
func (s ExperimentStatus) String() string {
	return string(s)
}

// ExperimentType — тип эксперимента.
//
// Набор типов закрыт: Runner выбирает стратегию выполнения
// одним switch по этому значению.
type ExperimentType string

const (
	// ExperimentTypePairwise — попарное сравнение выдачи двух конфигураций поиска.
	ExperimentTypePairwise ExperimentType = "PAIRWISE_COMPARISON"

	// ExperimentTypePointwise — оценка одной конфигурации по спискам judgments.
	ExperimentTypePointwise ExperimentType = "POINTWISE_EVALUATION"

	// ExperimentTypeHybrid — перебор параметров гибридного поиска.
	ExperimentTypeHybrid ExperimentType = "HYBRID_OPTIMIZER"
)

// String возвращает строковое представление ExperimentType.
func (t ExperimentType) String() string {
	return string(t)
}

// ParseExperimentType парсит строку в ExperimentType.
func ParseExperimentType(s string) (ExperimentType, error) {
	switch ExperimentType(s) {
	case ExperimentTypePairwise, ExperimentTypePointwise, ExperimentTypeHybrid:
		return ExperimentType(s), nil
	default:
		return "", invalidf("unknown experiment type %q", s)
	}
}
