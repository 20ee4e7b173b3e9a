// Package config загружает описание pipeline и строит неизменяемое окружение run.
//
// Источники, по возрастанию приоритета:
//   - YAML файл pipeline (shipyard.yaml)
//   - переменные окружения SHIPYARD_*, KUBECONFIG, BUILD_NUMBER
//   - Option, переданные вызывающим (номер сборки, ревизия от хука)
//
// Результат — Environment: значение, которое передаётся в оркестратор
// целиком и не меняется в процессе run.
package config
