// Package trigger запускает pipelines при появлении новых коммитов.
//
// Trigger по расписанию (cron) опрашивает удалённые репозитории всех
// pipeline из PIPELINES_DIR и создаёт PENDING run для каждого нового
// коммита.
//
// Структура:
//   - trigger.go — основная логика Trigger (Tick, processPipeline)
//   - cron.go    — разбор расписания и запуск тиков через robfig/cron
//   - leader.go  — leader election через pg_try_advisory_lock
//
// Использование:
//
//	trg := trigger.New(trigger.Config{
//	    Store:     runRepo,
//	    Publisher: publisher, // опционально
//	    Source:    source.NewGit(logger),
//	    Pipelines: config.DirFromEnv(),
//	    Logger:    logger,
//	})
//
//	if err := trg.Start(ctx, "@every 1m", trigger.NewAdvisoryLock(pool, key)); err != nil {
//	    return err
//	}
//	defer trg.Stop()
//
// Идемпотентность:
//
// Ключ run — "{repo}@{commit}". Один и тот же коммит не запускает
// pipeline дважды, даже если несколько экземпляров trigger работают
// одновременно или коммит уже пришёл через push-хук.
package trigger
