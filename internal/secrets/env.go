package secrets

import (
	"context"
	"log/slog"
	"os"
)

// ManagerFromEnv создаёт Manager с провайдерами env и file.
//
// Если задан SECRETS_AWS_REGION или AWS_REGION, регистрируется и aws.
// SECRETS_DIR задаёт базовый каталог для file-ссылок с относительным путём.
func ManagerFromEnv(ctx context.Context, logger *slog.Logger) (*Manager, error) {
	providers := []Provider{
		EnvProvider{},
		FileProvider{Dir: os.Getenv("SECRETS_DIR")},
	}

	region := os.Getenv("SECRETS_AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region != "" {
		aws, err := NewAWSProvider(ctx, region)
		if err != nil {
			return nil, err
		}
		providers = append(providers, aws)
	}

	return NewManager(Config{
		Providers: providers,
		TempDir:   os.Getenv("SECRETS_TMPDIR"),
		Logger:    logger,
	}), nil
}
