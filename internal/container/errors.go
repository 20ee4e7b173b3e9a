package container

import "errors"

var (
	// ErrDaemonUnavailable — Docker демон не отвечает.
	ErrDaemonUnavailable = errors.New("docker daemon unavailable")

	// ErrNoTags — сборка запрошена без тегов.
	ErrNoTags = errors.New("no image tags given")
)
