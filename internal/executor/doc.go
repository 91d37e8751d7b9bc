// Package executor доводит один execution до терминального состояния.
//
// Executor отвечает за:
//   - Перевод execution в RUNNING и финализацию (COMPLETED/FAILED)
//   - Строго последовательное выполнение шагов в порядке реестра
//   - Гонку каждого шага против его таймаута в отдельной горутине
//   - Персистентность каждого перехода до перехода к следующему шагу
//   - Накопление контекста: шаг N+1 видит outputs шагов 1..N
//   - Публикацию событий observability через внедрённый EventSink
//
// Первый упавший шаг останавливает прогон: последующие шаги остаются
// PENDING, execution получает сообщение упавшего шага. Ретраи внутри
// прогона не делаются — повтор принадлежит вызывающему слою (worker
// заново запускает весь прогон через очередь).
package executor
