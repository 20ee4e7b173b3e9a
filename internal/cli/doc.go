// Package cli реализует инструмент командной строки Shipyard.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - локально: `shipyard run` выполняет pipeline в текущем процессе
//     (docker, kubernetes и git берутся из окружения, БД не нужна);
//   - через API: `shipyard runs ...` создаёт и показывает runs
//     на сервере shipyard-api.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Shipyard API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Pipeline: "webapp"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) и логи — в stderr.
// Это позволяет использовать pipe: shipyard runs list --json | jq .
//
// ## Commands
//
//   - run: локальный запуск pipeline
//   - runs: list, show, start, stages
//   - ingress: route, render, apply
//
// Группы команд создаются фабричными функциями (NewRunsCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
