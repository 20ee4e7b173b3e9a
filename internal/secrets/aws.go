package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI — часть клиента Secrets Manager, нужная провайдеру.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider читает секреты из AWS Secrets Manager.
//
// Ключ вида "prod/registry" возвращает SecretString целиком,
// "prod/registry#password" — поле password из JSON-секрета.
type AWSProvider struct {
	client SecretsManagerAPI
}

// NewAWSProvider создаёт провайдер с конфигурацией AWS по умолчанию
// (переменные окружения, shared config, IAM роль).
func NewAWSProvider(ctx context.Context, region string) (*AWSProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewAWSProviderWithClient создаёт провайдер с готовым клиентом.
func NewAWSProviderWithClient(client SecretsManagerAPI) *AWSProvider {
	return &AWSProvider{client: client}
}

func (p *AWSProvider) Scheme() string { return "aws" }

func (p *AWSProvider) Resolve(ctx context.Context, key string) ([]byte, error) {
	id, field, _ := strings.Cut(key, "#")

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("aws %s: %w", id, ErrSecretNotFound)
		}
		return nil, fmt.Errorf("get secret value: %w", err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, fmt.Errorf("aws %s: empty secret: %w", id, ErrSecretNotFound)
	}

	if field == "" {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("aws %s: secret is not a JSON object: %w", id, err)
	}
	v, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("aws %s#%s: %w", id, field, ErrSecretNotFound)
	}
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}
