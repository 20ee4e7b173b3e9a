// Package telemetry — логи и метрики сервисов Shipyard.
//
// SetupLogger настраивает slog по LOG_FORMAT (json, text) и LOG_LEVEL.
// WithRunID, WithBuild и WithStage добавляют к логгеру атрибуты run,
// чтобы строки одной сборки можно было отфильтровать по run_id.
//
// Metrics считает runs по итогу и длительность стадий, HTTPMetrics —
// запросы API по шаблону маршрута. Handler отдаёт их на /metrics.
package telemetry
