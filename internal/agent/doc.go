// Package agent выполняет pipeline runs, созданные API или trigger.
//
// # Обзор
//
// Agent — stateless компонент системы Shipyard, который:
//
//   - Получает run.requested из очереди RabbitMQ (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback)
//   - Атомарно забирает run (PENDING → RUNNING), чтобы два агента
//     не выполнили одну сборку
//   - Загружает конфигурацию pipeline по имени из PIPELINES_DIR
//   - Выполняет run через orchestrator и сохраняет результаты стадий
//   - Публикует run.finished
//
// Agents масштабируются горизонтально. Каждый run получает собственное
// окружение и собственные scope секретов; общих изменяемых данных между
// runs нет.
//
// # Использование
//
//	a := agent.New(agent.Config{
//	    Store:     runRepo,
//	    Executor:  orch,
//	    Load:      config.DirFromEnv().Load,
//	    Publisher: publisher,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//	a.Start(ctx)
//	defer a.Stop()
package agent
