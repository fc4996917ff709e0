// Package lock — распределённая блокировка запланированных запусков.
//
// Реализация на PostgreSQL advisory locks: блокировка сессионная,
// поэтому Advisory держит выделенное соединение из пула до Release.
// Если процесс падает, соединение рвётся и PostgreSQL снимает блокировку сам.
package lock
