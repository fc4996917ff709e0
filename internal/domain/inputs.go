package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchTextPlaceholder — плейсхолдер текста запроса в шаблоне SearchConfiguration.Query.
const SearchTextPlaceholder = "%SearchText%"

// QuerySet — набор запросов для эксперимента.
type QuerySet struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Queries     []Query   `json:"queries"`
	CreatedAt   time.Time `json:"created_at"`
}

// Query — один запрос из набора.
type Query struct {
	QueryText string `json:"query_text"`
}

// SearchConfiguration — описание того, как выполнять поиск.
type SearchConfiguration struct {
	ID uuid.UUID `json:"id"`

	Name string `json:"name"`

	// Index — индекс, по которому идёт поиск.
	Index string `json:"index"`

	// Query — JSON тела запроса с плейсхолдером %SearchText%.
	// Пример: {"query":{"match":{"title":"%SearchText%"}}}
	Query string `json:"query"`

	// SearchPipeline — имя search pipeline (опционально).
	SearchPipeline string `json:"search_pipeline,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет конфигурацию.
func (c *SearchConfiguration) Validate() error {
	if strings.TrimSpace(c.Index) == "" {
		return invalidf("search configuration index is required")
	}
	if !strings.Contains(c.Query, SearchTextPlaceholder) {
		return invalidf("search configuration query must contain %s", SearchTextPlaceholder)
	}
	return nil
}

// JudgmentSet — оценки релевантности документов для запросов.
type JudgmentSet struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// Ratings — оценки по тексту запроса.
	Ratings map[string][]Rating `json:"ratings"`

	CreatedAt time.Time `json:"created_at"`
}

// Rating — оценка одного документа.
// Документ считается релевантным при Rating > 0.
type Rating struct {
	DocID  string  `json:"doc_id"`
	Rating float64 `json:"rating"`
}

// RatingsFor возвращает оценки для запроса в виде docID → rating.
func (j *JudgmentSet) RatingsFor(queryText string) map[string]float64 {
	out := make(map[string]float64, len(j.Ratings[queryText]))
	for _, r := range j.Ratings[queryText] {
		out[r.DocID] = r.Rating
	}
	return out
}
