// Package orchestrator выполняет pipeline run.
//
// Orchestrator отвечает за:
//   - Последовательный запуск стадий в фиксированном порядке
//   - Scope секретов на время каждой стадии (acquire/release на всех путях)
//   - Ограничение времени стадии (deploy-to-cluster — 10 минут по умолчанию)
//   - Fail-fast: после падения оставшиеся стадии записываются как skipped
//   - Post-фазу: on_success / on_failure, затем always (cleanup ровно один раз)
//   - Финализацию run (SUCCEEDED/FAILED)
//
// Единственное внутреннее состояние оркестратора — запись PipelineRun.
package orchestrator
