package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/settings"
)

// ErrSearch — ошибка выполнения поискового запроса.
var ErrSearch = errors.New("search request failed")

// Request — один поисковый запрос.
type Request struct {
	// Index — индекс для поиска.
	Index string

	// Query — шаблон тела запроса с %SearchText%.
	Query string

	// QueryText — подставляемый текст запроса.
	QueryText string

	// Size — сколько документов вернуть.
	Size int

	// PipelineName — именованный search pipeline.
	PipelineName string

	// Pipeline — временный search pipeline, передаётся в теле запроса.
	Pipeline map[string]any
}

// Hit — найденный документ.
type Hit struct {
	ID    string  `json:"_id"`
	Score float64 `json:"_score"`
}

// Client — клиент поискового движка.
type Client struct {
	http     *http.Client
	settings *settings.Store

	mu      sync.Mutex
	limiter *rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewClient создаёт клиент. httpClient может быть nil.
func NewClient(store *settings.Store, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg := store.Get().Search
	limit := rate.Limit(cfg.RatePerSec)
	burst := max(cfg.Burst, 1)
	return &Client{
		http:     httpClient,
		settings: store,
		limiter:  rate.NewLimiter(limit, burst),
		limit:    limit,
		burst:    burst,
	}
}

// Search выполняет запрос и возвращает найденные документы в порядке выдачи.
func (c *Client) Search(ctx context.Context, req Request) ([]Hit, error) {
	cfg := c.settings.Get().Search

	if err := c.wait(ctx, cfg); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", ErrSearch, err)
	}

	body, err := buildBody(req)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(cfg.URL, "/") + "/" + url.PathEscape(req.Index) + "/_search"
	if req.PipelineName != "" && req.Pipeline == nil {
		endpoint += "?search_pipeline=" + url.QueryEscape(req.PipelineName)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSearch, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSearch, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSearch, resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed struct {
		Hits struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearch, err)
	}
	return parsed.Hits.Hits, nil
}

// wait ждёт разрешения лимитера, подстраивая его под текущие настройки.
func (c *Client) wait(ctx context.Context, cfg settings.SearchSettings) error {
	c.mu.Lock()
	limit := rate.Limit(cfg.RatePerSec)
	burst := max(cfg.Burst, 1)
	if limit != c.limit || burst != c.burst {
		c.limiter.SetLimit(limit)
		c.limiter.SetBurst(burst)
		c.limit, c.burst = limit, burst
	}
	limiter := c.limiter
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

// buildBody подставляет текст запроса в шаблон и добавляет size и pipeline.
func buildBody(req Request) ([]byte, error) {
	escaped, err := json.Marshal(req.QueryText)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query text: %v", ErrSearch, err)
	}
	// Без внешних кавычек: плейсхолдер стоит внутри строкового литерала шаблона.
	text := string(escaped[1 : len(escaped)-1])
	rendered := strings.ReplaceAll(req.Query, domain.SearchTextPlaceholder, text)

	var body map[string]any
	if err := json.Unmarshal([]byte(rendered), &body); err != nil {
		return nil, fmt.Errorf("%w: query template is not valid JSON: %v", ErrSearch, err)
	}
	if req.Size > 0 {
		body["size"] = req.Size
	}
	if req.Pipeline != nil {
		body["search_pipeline"] = req.Pipeline
	}
	return json.Marshal(body)
}

// DocIDs возвращает ID документов из выдачи.
func DocIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
