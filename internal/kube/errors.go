package kube

import "errors"

var (
	// ErrRolloutFailed — deployment не смог выкатиться (ProgressDeadlineExceeded).
	ErrRolloutFailed = errors.New("deployment rollout failed")

	// ErrNoNodeAddress — у узлов кластера нет адреса для NodePort.
	ErrNoNodeAddress = errors.New("no node address found")

	// ErrInvalidResource — некорректное значение requests/limits.
	ErrInvalidResource = errors.New("invalid resource quantity")
)
