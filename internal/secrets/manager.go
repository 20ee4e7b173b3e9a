package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shaiso/Shipyard/internal/domain"
)

// Manager выбирает провайдера по схеме ссылки и открывает scope для стадий.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	tempDir   string
	logger    *slog.Logger

	// active — количество открытых scope.
	active atomic.Int64
}

// Config — конфигурация Manager.
type Config struct {
	// Providers — провайдеры, регистрируемые сразу.
	// Если пусто, регистрируются env и file.
	Providers []Provider

	// TempDir — где создавать файлы секретов (kubeconfig).
	// По умолчанию os.TempDir().
	TempDir string

	Logger *slog.Logger
}

// NewManager создаёт Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Manager{
		providers: make(map[string]Provider),
		tempDir:   cfg.TempDir,
		logger:    cfg.Logger,
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []Provider{EnvProvider{}, FileProvider{}}
	}
	for _, p := range cfg.Providers {
		m.Register(p)
	}
	return m
}

// Register регистрирует провайдера. Повторная регистрация схемы заменяет старого.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Scheme()] = p
}

// Resolve разрешает одну ссылку.
func (m *Manager) Resolve(ctx context.Context, ref domain.CredentialRef) ([]byte, error) {
	scheme, key, err := ref.Parse()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", ref, err)
	}

	m.mu.RLock()
	p, ok := m.providers[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", scheme, ErrUnknownScheme)
	}

	return p.Resolve(ctx, key)
}

// Acquire открывает scope для стадии: разрешает все её ссылки.
//
// При ошибке уже разрешённые значения затираются, scope не возвращается.
// Вызывающий обязан вызвать Release на всех путях выхода из стадии.
func (m *Manager) Acquire(ctx context.Context, stage string, refs map[string]domain.CredentialRef) (*Scope, error) {
	s := &Scope{
		stage:   stage,
		values:  make(map[string][]byte, len(refs)),
		tempDir: m.tempDir,
		onRelease: func() {
			m.active.Add(-1)
		},
	}
	m.active.Add(1)

	for name, ref := range refs {
		if ref.IsZero() {
			continue
		}
		v, err := m.Resolve(ctx, ref)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("resolve credential %s: %w", name, err)
		}
		s.values[name] = v
	}

	m.logger.Debug("credential scope acquired", "stage", stage, "count", len(s.values))
	return s, nil
}

// Active возвращает количество незакрытых scope.
func (m *Manager) Active() int64 {
	return m.active.Load()
}
