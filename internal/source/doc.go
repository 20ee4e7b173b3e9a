// Package source получает исходники из git репозитория (go-git).
package source
