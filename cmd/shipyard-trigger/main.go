// Shipyard Trigger — запускает pipelines на новые коммиты.
//
// Trigger по расписанию опрашивает репозитории pipelines из PIPELINES_DIR
// и создаёт PENDING run для каждого нового коммита. Несколько экземпляров
// безопасны: тик выполняет только лидер (pg_try_advisory_lock).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/mq"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/secrets"
	"github.com/shaiso/Shipyard/internal/source"
	"github.com/shaiso/Shipyard/internal/telemetry"
	"github.com/shaiso/Shipyard/internal/trigger"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting shipyard-trigger")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var publisher trigger.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	mgr, err := secrets.ManagerFromEnv(ctx, logger)
	if err != nil {
		logger.Error("failed to set up secrets", "error", err)
		os.Exit(1)
	}

	trg := trigger.New(trigger.Config{
		Store:     repo.NewRunRepo(pool),
		Publisher: publisher,
		Source:    source.NewGit(logger),
		Secrets:   mgr,
		Pipelines: config.DirFromEnv(),
		Logger:    logger,
	})

	schedule := trigger.DefaultSchedule
	if v := os.Getenv("TRIGGER_SCHEDULE"); v != "" {
		schedule = v
	}

	if err := trg.Start(ctx, schedule, trigger.NewAdvisoryLock(pool, trigger.DefaultLockKey)); err != nil {
		logger.Error("failed to start trigger", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.Handler(nil))

	port := ":8083"
	if v := os.Getenv("TRIGGER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	trg.Stop()
	logger.Info("shipyard-trigger stopped")
}
