package stages

import "errors"

// Ошибки стадий (классы отказов pipeline).
var (
	// ErrEnvironmentInvalid — окружение не готово: нет инструмента, демона, кластера.
	ErrEnvironmentInvalid = errors.New("environment validation failed")

	// ErrCheckoutFailed — не удалось получить исходники.
	ErrCheckoutFailed = errors.New("source checkout failed")

	// ErrBuildFailed — сборка образа завершилась ошибкой.
	ErrBuildFailed = errors.New("image build failed")

	// ErrPushFailed — push образа завершился ошибкой.
	ErrPushFailed = errors.New("image push failed")

	// ErrDeployFailed — не удалось применить манифесты или выкатить деплоймент.
	ErrDeployFailed = errors.New("deploy failed")

	// ErrRolloutTimeout — деплоймент не выкатился за отведённое время.
	ErrRolloutTimeout = errors.New("rollout timed out")

	// ErrVerifyFailed — деплоймент выкачен, но не готов.
	ErrVerifyFailed = errors.New("deployment verification failed")

	// ErrCleanupFailed — часть ресурсов не удалось освободить.
	ErrCleanupFailed = errors.New("cleanup incomplete")
)
