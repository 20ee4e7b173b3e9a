package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/engine"
)

// Stage — стадия pipeline.
type Stage interface {
	// Name возвращает имя стадии.
	Name() domain.StageName

	// Credentials возвращает имена секретов, нужных стадии.
	// Оркестратор открывает для них scope на время Execute.
	Credentials() []string

	// Execute выполняет стадию.
	// Стадия должна проверять ctx.Done(); при ошибке Output может содержать частичный вывод.
	Execute(ctx context.Context, exec *Execution) (*Output, error)
}

// Credentials — секреты, доступные стадии. Реализуется secrets.Scope.
type Credentials interface {
	Get(name string) (string, error)
	File(name string) (string, error)
	Has(name string) bool
}

// Execution — входные данные стадии.
type Execution struct {
	RunID uuid.UUID

	// Env — неизменяемая конфигурация run.
	Env config.Environment

	// Credentials — секреты из scope стадии.
	Credentials Credentials

	// State — артефакты, которые стадии передают друг другу.
	State *State

	// Template — контекст шаблонов (номер сборки, commit, адрес).
	Template *engine.Context

	Logger *slog.Logger
}

// Output — результат стадии.
type Output struct {
	// Text — захваченный вывод.
	Text string
}

// output — построитель вывода стадии.
type output struct {
	b strings.Builder
}

func (o *output) printf(format string, args ...any) {
	fmt.Fprintf(&o.b, format, args...)
	if !strings.HasSuffix(format, "\n") {
		o.b.WriteByte('\n')
	}
}

func (o *output) write(text string) {
	if text == "" {
		return
	}
	o.b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		o.b.WriteByte('\n')
	}
}

func (o *output) result() *Output {
	return &Output{Text: o.b.String()}
}

// tail возвращает последние n строк текста.
func tail(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
