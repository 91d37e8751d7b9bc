// Package cli реализует инструмент командной строки Bindery.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Bindery API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для загрузки артефактов, запуска пайплайна,
// ручных workflows и просмотра состояния executions.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Bindery API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	stats, err := client.Stats()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: bindery execution list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - artifact: upload, show, process, status, workflow
//   - execution: list, show
//   - stats
//
// Каждая группа создаётся через фабричную функцию (NewArtifactCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
