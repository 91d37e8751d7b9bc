// Package worker прогоняет пайплайны обработки артефактов.
//
// # Обзор
//
// Worker — stateless компонент системы Bindery, который выполняет
// команды artifact.process, опубликованные API. Worker отвечает за:
//
//   - Получение команд из очереди RabbitMQ (event-driven)
//   - Периодическую проверку зависших PENDING executions в БД (polling fallback)
//   - Создание execution со всеми шагами пайплайна
//   - Прогон шагов через Executor до терминального статуса
//   - Публикацию pipeline.updated по завершении прогона
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди artifacts.process.
//
// # Обработка команды
//
//  1. Получение artifact.process (из очереди или polling)
//  2. Загрузка артефакта из БД; отсутствующий артефакт подтверждается без обработки
//  3. Создание execution с PENDING-шагами (одна транзакция)
//  4. Загрузка изображения из объектного хранилища
//  5. Прогон пайплайна через executor.Run до COMPLETED или FAILED
//  6. Публикация pipeline.updated с итоговым статусом
//
// # Семантика доставки
//
// At-least-once: при падении воркера посреди прогона сообщение вернётся
// в очередь и пайплайн прогонится заново новым execution. Брошенный
// RUNNING execution позже помечает sweeper.
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (error от runExecution) — БД недоступна, хранилище
//     не отвечает. Сообщение переиздаётся с backoff до исчерпания бюджета.
//   - Терминальный FAILED execution — упавший шаг. Это не ошибка обработки:
//     сообщение подтверждается, результат записан в БД.
//
// Отдельно: отсутствие объекта в хранилище — безвозвратная ошибка,
// сообщение сразу уходит в DLQ.
package worker
