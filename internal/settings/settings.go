package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings — снапшот настроек.
type Settings struct {
	Scheduler SchedulerSettings `yaml:"scheduler"`
	Runner    RunnerSettings    `yaml:"runner"`
	Search    SearchSettings    `yaml:"search"`
}

// SchedulerSettings — настройки запланированных запусков.
type SchedulerSettings struct {
	// MinimumInterval — минимальный интервал между срабатываниями cron.
	MinimumInterval time.Duration `yaml:"minimum_interval"`

	// Timeout — максимальное время одного запланированного запуска.
	Timeout time.Duration `yaml:"timeout"`

	// SyncInterval — как часто Trigger сверяет cron-записи с БД.
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// RunnerSettings — настройки выполнения экспериментов.
type RunnerSettings struct {
	// MaxConcurrency — размер пула подзадач. Читается при старте процесса.
	MaxConcurrency int `yaml:"max_concurrency"`

	// DefaultSize — размер выдачи, если в эксперименте не задан.
	DefaultSize int `yaml:"default_size"`
}

// SearchSettings — настройки клиента поискового движка.
type SearchSettings struct {
	URL        string        `yaml:"url"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Burst      int           `yaml:"burst"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default возвращает настройки по умолчанию.
func Default() *Settings {
	return &Settings{
		Scheduler: SchedulerSettings{
			MinimumInterval: time.Minute,
			Timeout:         60 * time.Minute,
			SyncInterval:    30 * time.Second,
		},
		Runner: RunnerSettings{
			MaxConcurrency: 16,
			DefaultSize:    10,
		},
		Search: SearchSettings{
			URL:        "http://localhost:9200",
			RatePerSec: 50,
			Burst:      10,
			Timeout:    30 * time.Second,
		},
	}
}

// Validate проверяет значения.
func (s *Settings) Validate() error {
	var errs []error
	if s.Scheduler.MinimumInterval < 0 {
		errs = append(errs, errors.New("scheduler.minimum_interval must not be negative"))
	}
	if s.Scheduler.Timeout <= 0 {
		errs = append(errs, errors.New("scheduler.timeout must be positive"))
	}
	if s.Scheduler.SyncInterval <= 0 {
		errs = append(errs, errors.New("scheduler.sync_interval must be positive"))
	}
	if s.Runner.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("runner.max_concurrency must be positive"))
	}
	if s.Runner.DefaultSize <= 0 {
		errs = append(errs, errors.New("runner.default_size must be positive"))
	}
	if s.Search.URL == "" {
		errs = append(errs, errors.New("search.url is required"))
	}
	if s.Search.RatePerSec <= 0 {
		errs = append(errs, errors.New("search.rate_per_sec must be positive"))
	}
	return errors.Join(errs...)
}

// Parse разбирает YAML поверх значений по умолчанию.
func Parse(data []byte) (*Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// LoadFile читает настройки из файла.
// Отсутствующий файл не ошибка: возвращаются значения по умолчанию.
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// Path возвращает путь к файлу настроек из окружения.
func Path() string {
	if p := os.Getenv("SEARCHLAB_CONFIG"); p != "" {
		return p
	}
	return "searchlab.yaml"
}
