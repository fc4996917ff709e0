// Package settings — динамические настройки Searchlab.
//
// Настройки читаются из YAML-файла (SEARCHLAB_CONFIG, по умолчанию searchlab.yaml).
// Store хранит снапшот за atomic.Pointer: компоненты берут Get() на каждый
// вызов и никогда не видят наполовину обновлённые значения. Watch следит
// за файлом через fsnotify и подменяет снапшот целиком.
//
// Пример файла:
//
//	scheduler:
//	  minimum_interval: 1m
//	  timeout: 60m
//	  sync_interval: 30s
//	runner:
//	  max_concurrency: 16
//	  default_size: 10
//	search:
//	  url: http://localhost:9200
//	  rate_per_sec: 50
//	  burst: 10
//	  timeout: 30s
package settings
