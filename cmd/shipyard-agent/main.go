// Shipyard Agent — выполняет pipeline runs.
//
// Agent:
//   - Получает run.requested из RabbitMQ (и опрашивает PENDING runs в БД)
//   - Загружает pipeline из PIPELINES_DIR
//   - Выполняет стадии: validate → checkout → build → push → deploy → verify
//   - Сохраняет результаты стадий и публикует run.finished
//
// Agents масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Shipyard/internal/agent"
	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/mq"
	"github.com/shaiso/Shipyard/internal/orchestrator"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/secrets"
	"github.com/shaiso/Shipyard/internal/stages"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting shipyard-agent")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	runRepo := repo.NewRunRepo(pool)

	// RabbitMQ
	var (
		publisher agent.Events
		mqConn    *mq.Connection
	)
	mqConn, err = mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Стадии и секреты
	deps, err := stages.LiveDeps(logger)
	if err != nil {
		logger.Error("failed to set up stage dependencies", "error", err)
		os.Exit(1)
	}
	mgr, err := secrets.ManagerFromEnv(ctx, logger)
	if err != nil {
		logger.Error("failed to set up secrets", "error", err)
		os.Exit(1)
	}

	orch := orchestrator.New(orchestrator.Config{
		Pipeline: stages.Default(deps),
		Secrets:  mgr,
		Recorder: runRepo,
		Metrics:  telemetry.NewMetrics(nil),
		Logger:   logger,
	})

	pollInterval := 10 * time.Second
	if v := os.Getenv("AGENT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			pollInterval = d
		}
	}

	// Создаём agent
	a := agent.New(agent.Config{
		Store:        runRepo,
		Executor:     orch,
		Load:         config.DirFromEnv().Load,
		Publisher:    publisher,
		Conn:         mqConn,
		PollInterval: pollInterval,
		Logger:       logger,
	})

	// Запускаем agent
	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start agent", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.Handler(nil))

	port := ":8082"
	if v := os.Getenv("AGENT_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем agent: текущая стадия прерывается, post-фаза доигрывается
	a.Stop()
	logger.Info("shipyard-agent stopped", "open_credential_scopes", orch.ActiveScopes())
}
