// Package secrets разрешает ссылки на секреты и выдаёт их стадиям.
//
// Ссылка (domain.CredentialRef) имеет вид "scheme:key". Схема выбирает
// провайдера:
//   - env  — переменная окружения процесса
//   - file — содержимое файла (например, смонтированный секрет)
//   - aws  — AWS Secrets Manager
//
// Значения живут только внутри Scope, который оркестратор открывает
// на входе в стадию и закрывает на выходе, на любом пути.
package secrets
