// Package async содержит примитивы конкурентного выполнения экспериментов.
//
// # Компоненты
//
//   - Token — токен отмены запуска: колбэки вызываются ровно один раз, в порядке регистрации
//   - TaskCounter — счётчик незавершённых подзадач с колбэком завершения
//   - Latch — одноразовый countdown latch, сигнал "дренаж завершён"
//   - RunWithTimeout — ограничение времени выполнения с ожиданием дренажа
//   - Executor — ограниченный пул для подзадач
//
// # Порядок завершения
//
// RunWithTimeout никогда не возвращает результат, пока Latch не дошёл до нуля:
//
//	op закончился ─┐
//	               ├─→ ждём Latch → останавливаем таймер → результат op
//	таймер сработал┘   (Token.Cancel, ctx отменён)      → ErrTimeout
//
// Отмена кооперативная: подзадачи сами проверяют Token.IsCancelled
// или слушают Token.Done.
package async
