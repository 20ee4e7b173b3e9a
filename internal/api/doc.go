// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (хранилище runs, publisher, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - run_handler.go     — обработчики для /runs
//   - hook_handler.go    — обработчик push-хуков
//   - ingress_handler.go — просмотр таблицы маршрутизации
//
// API запускает pipeline runs и показывает их результаты.
// Выполнением занимается agent: API только создаёт PENDING run
// и публикует run.requested.
package api
