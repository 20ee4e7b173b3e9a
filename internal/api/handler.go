package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/ingress"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// RunStore — хранилище runs (реализуется repo.RunRepo).
type RunStore interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	GetByIdempotencyKey(ctx context.Context, pipeline, key string) (*domain.PipelineRun, error)
	List(ctx context.Context, filter repo.RunFilter) ([]*domain.PipelineRun, error)
	ListStages(ctx context.Context, runID uuid.UUID) (main, post []domain.StageResult, err error)
}

// Publisher публикует run.requested (реализуется mq.Publisher).
type Publisher interface {
	PublishRunRequested(ctx context.Context, run *domain.PipelineRun) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs      RunStore
	publisher Publisher
	pipelines config.Dir
	routes    *ingress.Table
	metrics   *telemetry.HTTPMetrics
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs      RunStore
	Publisher Publisher

	// Pipelines — каталог с конфигурациями pipeline.
	Pipelines config.Dir

	// Routes — таблица маршрутизации ingress (опционально).
	Routes *ingress.Table

	// Metrics — метрики запросов (опционально).
	Metrics *telemetry.HTTPMetrics

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		pipelines: cfg.Pipelines,
		routes:    cfg.Routes,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}
