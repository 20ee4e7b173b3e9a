// Package kube — взаимодействие с кластером Kubernetes через client-go.
//
// Включает:
//   - client.go   — подключение по kubeconfig и контексту
//   - manifest.go — генерация Deployment/Service и запись дескриптора в workspace
//   - apply.go    — create-or-update объектов
//   - rollout.go  — ожидание завершения rollout
//   - inspect.go  — поды, события, логи, адрес доступа
package kube
