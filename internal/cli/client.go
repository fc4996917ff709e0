package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ExperimentResponse — эксперимент из API.
type ExperimentResponse struct {
	ID                     string             `json:"id"`
	Type                   string             `json:"type"`
	Status                 string             `json:"status"`
	QuerySetID             string             `json:"query_set_id"`
	SearchConfigurationIDs []string           `json:"search_configuration_ids"`
	JudgmentIDs            []string           `json:"judgment_ids,omitempty"`
	Size                   int                `json:"size"`
	Scheduled              bool               `json:"scheduled"`
	Results                []ExperimentResult `json:"results"`
	Error                  string             `json:"error,omitempty"`
	CreatedAt              string             `json:"created_at"`
	UpdatedAt              string             `json:"updated_at"`
}

// ExperimentResult — результат подзадачи эксперимента.
type ExperimentResult struct {
	QueryText             string              `json:"query_text"`
	SearchConfigurationID string              `json:"search_configuration_id,omitempty"`
	VariantID             string              `json:"variant_id,omitempty"`
	Snapshots             map[string][]string `json:"snapshots,omitempty"`
	Metrics               map[string]float64  `json:"metrics,omitempty"`
	Error                 string              `json:"error,omitempty"`
}

// ExperimentSummary — эксперимент в списке.
type ExperimentSummary struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Scheduled bool   `json:"scheduled"`
	Results   int    `json:"results"`
	CreatedAt string `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID           string `json:"id"`
	ExperimentID string `json:"experiment_id"`
	CronExpr     string `json:"cron_expr"`
	Timezone     string `json:"timezone"`
	Enabled      bool   `json:"enabled"`
	NextRunAt    string `json:"next_run_at,omitempty"`
	LastRunAt    string `json:"last_run_at,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// HistoryResponse — запись истории запусков.
type HistoryResponse struct {
	ID           string `json:"id"`
	ExperimentID string `json:"experiment_id"`
	JobID        string `json:"job_id"`
	Timestamp    string `json:"timestamp"`
	DurationMs   int64  `json:"duration_ms"`
	Status       string `json:"status"`
	Results      int    `json:"results"`
	Error        string `json:"error,omitempty"`
}

// QuerySetResponse — набор запросов из API.
type QuerySetResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Queries []struct {
		QueryText string `json:"query_text"`
	} `json:"queries"`
	CreatedAt string `json:"created_at"`
}

// --- Request types ---

// CreateExperimentRequest — создание эксперимента.
type CreateExperimentRequest struct {
	Type                   string   `json:"type"`
	QuerySetID             string   `json:"query_set_id"`
	SearchConfigurationIDs []string `json:"search_configuration_ids"`
	JudgmentIDs            []string `json:"judgment_ids,omitempty"`
	Size                   int      `json:"size,omitempty"`
}

// ScheduleRequest — создание расписания.
type ScheduleRequest struct {
	CronExpr string `json:"cron_expr"`
	Timezone string `json:"timezone,omitempty"`
}

// CreateQuerySetRequest — создание набора запросов.
type CreateQuerySetRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Queries     []string `json:"queries"`
}

// ListExperimentsOpts — параметры фильтрации экспериментов.
type ListExperimentsOpts struct {
	Type   string
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Searchlab API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Experiments ---

// CreateExperiment создаёт эксперимент. Запуск идёт в фоне,
// ответ приходит со статусом PROCESSING.
func (c *Client) CreateExperiment(req CreateExperimentRequest) (*ExperimentResponse, error) {
	var exp ExperimentResponse
	err := c.post("/api/v1/experiments", req, &exp)
	return &exp, err
}

// GetExperiment возвращает эксперимент по ID.
func (c *Client) GetExperiment(id string) (*ExperimentResponse, error) {
	var exp ExperimentResponse
	err := c.get("/api/v1/experiments/"+id, &exp)
	return &exp, err
}

// ListExperiments возвращает эксперименты с фильтрацией.
func (c *Client) ListExperiments(opts ListExperimentsOpts) ([]ExperimentSummary, error) {
	params := url.Values{}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var exps []ExperimentSummary
	err := c.list("/api/v1/experiments", params, &exps)
	return exps, err
}

// DeleteExperiment удаляет эксперимент вместе с расписанием и историей.
func (c *Client) DeleteExperiment(id string) error {
	return c.delete("/api/v1/experiments/" + id)
}

// History возвращает историю запланированных запусков эксперимента.
func (c *Client) History(experimentID string, limit int) ([]HistoryResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var records []HistoryResponse
	err := c.list("/api/v1/experiments/"+experimentID+"/history", params, &records)
	return records, err
}

// --- Schedules ---

// Schedule ставит эксперимент на расписание.
func (c *Client) Schedule(experimentID string, req ScheduleRequest) (*ScheduleResponse, error) {
	var job ScheduleResponse
	err := c.post("/api/v1/experiments/"+experimentID+"/schedule", req, &job)
	return &job, err
}

// ListSchedules возвращает расписания. При enabled=nil фильтра нет.
func (c *Client) ListSchedules(enabled *bool) ([]ScheduleResponse, error) {
	params := url.Values{}
	if enabled != nil {
		params.Set("enabled", strconv.FormatBool(*enabled))
	}

	var jobs []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &jobs)
	return jobs, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var job ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &job)
	return &job, err
}

// Unschedule снимает расписание.
func (c *Client) Unschedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// --- Inputs ---

// CreateQuerySet создаёт набор запросов.
func (c *Client) CreateQuerySet(req CreateQuerySetRequest) (*QuerySetResponse, error) {
	var qs QuerySetResponse
	err := c.post("/api/v1/query-sets", req, &qs)
	return &qs, err
}

// GetQuerySet возвращает набор запросов по ID.
func (c *Client) GetQuerySet(id string) (*QuerySetResponse, error) {
	var qs QuerySetResponse
	err := c.get("/api/v1/query-sets/"+id, &qs)
	return &qs, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
