package domain

import (
	"time"

	"github.com/google/uuid"
)

// Experiment — эксперимент по оценке качества поиска.
//
// Эксперимент создаётся со статусом PROCESSING и пустыми результатами.
// Дальше его меняет только Runner: один финальный write с результатами
// и терминальным статусом. Запланированный эксперимент (Scheduled)
// перезапускается по cron, история запусков хранится отдельно
// в RunHistoryRecord.
type Experiment struct {
	// ID — уникальный идентификатор эксперимента.
	// Совпадает с ID ScheduledJob, если эксперимент запланирован.
	ID uuid.UUID `json:"id"`

	// Type — тип эксперимента.
	Type ExperimentType `json:"type"`

	// Status — текущий статус.
	Status ExperimentStatus `json:"status"`

	// QuerySetID — набор запросов, по которым идёт эксперимент.
	QuerySetID uuid.UUID `json:"query_set_id"`

	// SearchConfigurationIDs — конфигурации поиска.
	// PAIRWISE_COMPARISON: ровно две разные, остальные типы: ровно одна.
	SearchConfigurationIDs []uuid.UUID `json:"search_configuration_ids"`

	// JudgmentIDs — списки оценок релевантности.
	// Обязательны для POINTWISE_EVALUATION и HYBRID_OPTIMIZER.
	JudgmentIDs []uuid.UUID `json:"judgment_ids,omitempty"`

	// Size — сколько документов запрашивать у поиска (k для метрик).
	Size int `json:"size"`

	// Scheduled — эксперимент привязан к ScheduledJob.
	Scheduled bool `json:"scheduled"`

	// Results — результаты последнего запуска, по одной записи на запрос
	// (для гибридного типа на пару запрос × вариант).
	Results []ExperimentResult `json:"results"`

	// Error — текст ошибки, если статус ERROR.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// ExperimentResult — результат одной подзадачи эксперимента.
type ExperimentResult struct {
	// QueryText — текст запроса.
	QueryText string `json:"query_text"`

	// SearchConfigurationID — конфигурация (для pointwise/hybrid).
	SearchConfigurationID *uuid.UUID `json:"search_configuration_id,omitempty"`

	// VariantID — вариант гибридного поиска (только HYBRID_OPTIMIZER).
	VariantID *uuid.UUID `json:"variant_id,omitempty"`

	// EvaluationIDs — сохранённые EvaluationResult, по одному на judgment list.
	EvaluationIDs []uuid.UUID `json:"evaluation_ids,omitempty"`

	// Snapshots — выдача по каждой конфигурации (только PAIRWISE_COMPARISON).
	Snapshots map[string][]string `json:"snapshots,omitempty"`

	// Metrics — вычисленные метрики.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Error — ошибка подзадачи. Остальные подзадачи при этом продолжаются.
	Error string `json:"error,omitempty"`
}

// NewExperiment создаёт эксперимент в статусе PROCESSING.
func NewExperiment(typ ExperimentType, querySetID uuid.UUID, configIDs, judgmentIDs []uuid.UUID, size int) *Experiment {
	now := time.Now()
	return &Experiment{
		ID:                     uuid.New(),
		Type:                   typ,
		Status:                 ExperimentStatusProcessing,
		QuerySetID:             querySetID,
		SearchConfigurationIDs: configIDs,
		JudgmentIDs:            judgmentIDs,
		Size:                   size,
		Results:                []ExperimentResult{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// Validate проверяет кардинальность конфигураций и judgments для типа.
func (e *Experiment) Validate() error {
	if e.QuerySetID == uuid.Nil {
		return invalidf("query set id is required")
	}
	if e.Size < 0 {
		return invalidf("size must not be negative")
	}

	switch e.Type {
	case ExperimentTypePairwise:
		if len(e.SearchConfigurationIDs) != 2 {
			return invalidf("pairwise comparison requires exactly 2 search configurations, got %d", len(e.SearchConfigurationIDs))
		}
		if e.SearchConfigurationIDs[0] == e.SearchConfigurationIDs[1] {
			return invalidf("pairwise comparison requires 2 distinct search configurations")
		}
	case ExperimentTypePointwise, ExperimentTypeHybrid:
		if len(e.SearchConfigurationIDs) != 1 {
			return invalidf("%s requires exactly 1 search configuration, got %d", e.Type, len(e.SearchConfigurationIDs))
		}
		if len(e.JudgmentIDs) == 0 {
			return invalidf("%s requires at least 1 judgment list", e.Type)
		}
	default:
		return invalidf("unknown experiment type %q", e.Type)
	}
	return nil
}

// MarkProcessing сбрасывает результаты перед очередным запуском.
func (e *Experiment) MarkProcessing() {
	e.Status = ExperimentStatusProcessing
	e.Results = []ExperimentResult{}
	e.Error = ""
	e.UpdatedAt = time.Now()
}

// MarkCompleted переводит эксперимент в COMPLETED с результатами.
func (e *Experiment) MarkCompleted(results []ExperimentResult) {
	if results == nil {
		results = []ExperimentResult{}
	}
	e.Status = ExperimentStatusCompleted
	e.Results = results
	e.Error = ""
	e.UpdatedAt = time.Now()
}

// MarkError переводит эксперимент в ERROR.
// Частичные результаты сохраняются.
func (e *Experiment) MarkError(err string, results []ExperimentResult) {
	if results == nil {
		results = []ExperimentResult{}
	}
	e.Status = ExperimentStatusError
	e.Results = results
	e.Error = err
	e.UpdatedAt = time.Now()
}
