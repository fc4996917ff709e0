// Package search — HTTP-клиент поискового движка.
//
// Client выполняет POST {url}/{index}/_search с телом из шаблона
// SearchConfiguration.Query, где %SearchText% заменён текстом запроса.
// Частота запросов ограничена rate.Limiter; лимиты и адрес берутся
// из текущего снапшота настроек на каждый вызов.
package search
