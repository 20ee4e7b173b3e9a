// Package stages содержит типизированные стадии pipeline.
//
// Основные стадии, в порядке выполнения:
//   - validate-environment — инструменты, Docker демон, доступ к кластеру
//   - checkout-source      — клон репозитория на ревизию
//   - build-image          — сборка образа с тегами <build> и latest
//   - push-image           — push в registry
//   - deploy-to-cluster    — Deployment + Service, ожидание rollout
//   - verify-deployment    — проверка готовых подов и адреса сервиса
//
// Post-стадии: report-access (on success), collect-diagnostics (on failure),
// cleanup (always).
//
// Каждая стадия получает внешние зависимости через интерфейсы,
// поэтому тестируется отдельно с фейками.
package stages
