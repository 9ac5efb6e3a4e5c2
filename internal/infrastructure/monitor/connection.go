package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Probe checks one dependency. nil means the dependency is not in use.
type Probe func(ctx context.Context) error

func PostgresProbe(pool *pgxpool.Pool) Probe {
	if pool == nil {
		return nil
	}
	return pool.Ping
}

func RedisProbe(client *redislib.Client) Probe {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

type Sizer interface {
	Size() (int, error)
}

// SizeFunc adapts counters that cannot fail, such as the TTL cache.
type SizeFunc func() int

func (f SizeFunc) Size() (int, error) { return f(), nil }

type Options struct {
	Postgres Probe
	Redis    Probe
	Buffer   Sizer
	Cache    Sizer
	Interval time.Duration
	Logger   *zap.Logger
}

type Monitor struct {
	opts Options

	status   Status
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		opts:   opts,
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the primary stores answered the last check.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL && m.status.Redis
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the snapshot.
func (m *Monitor) Refresh(ctx context.Context) Status {
	bufferOK, bufferSize := m.size("buffer", m.opts.Buffer)
	_, cacheSize := m.size("cache", m.opts.Cache)
	status := Status{
		PostgreSQL: m.probe(ctx, "postgres", m.opts.Postgres, 3*time.Second),
		Redis:      m.probe(ctx, "redis", m.opts.Redis, 2*time.Second),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		CacheSize:  cacheSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && (previous.PostgreSQL && previous.Redis) != (status.PostgreSQL && status.Redis) {
		m.logger.Warn("connectivity changed",
			zap.Bool("postgresql", status.PostgreSQL),
			zap.Bool("redis", status.Redis))
	}
	return status
}

func (m *Monitor) probe(ctx context.Context, name string, p Probe, timeout time.Duration) bool {
	if p == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p(ctx); err != nil {
		m.logger.Debug("dependency check failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) size(name string, s Sizer) (bool, int) {
	if s == nil {
		return false, 0
	}
	size, err := s.Size()
	if err != nil {
		m.logger.Warn("size check failed", zap.String("component", name), zap.Error(err))
		return false, size
	}
	return true, size
}
