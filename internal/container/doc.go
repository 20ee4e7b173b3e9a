// Package container — обёртка над Docker Engine API (go-dockerclient).
//
// Стадии работают с интерфейсом ImageService: проверка демона,
// сборка, тегирование, push и удаление образов.
package container
