// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (репозитории, store, workflows, publisher)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - artifact_handler.go  — обработчики для /artifacts (upload, process, workflows)
//   - execution_handler.go — обработчики для /executions и /stats
//
// API предоставляет REST endpoints для загрузки артефактов, запуска
// пайплайна, ручных workflows и чтения состояния executions.
package api
