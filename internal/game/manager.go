package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/logging"
	"github.com/annel0/pong-engine/internal/physics"
	"github.com/annel0/pong-engine/internal/storage"
)

const saveTimeout = 5 * time.Second

// ManagerConfig параметры менеджера матчей
type ManagerConfig struct {
	Rules      Rules
	Physics    physics.Config
	Tick       time.Duration // Период игрового цикла каждого матча
	MaxMatches int           // Лимит матчей в памяти; окончившиеся вытесняются новыми. 0: без ограничения
}

// ManagerOption настройка менеджера
type ManagerOption func(*Manager)

// WithBus шина для событий всех матчей
func WithBus(bus eventbus.EventBus) ManagerOption {
	return func(mgr *Manager) { mgr.bus = bus }
}

// WithResults хранилище итогов матчей
func WithResults(repo storage.ResultRepository) ManagerOption {
	return func(mgr *Manager) { mgr.results = repo }
}

// WithManagerMetrics метрики матчей
func WithManagerMetrics(metrics *Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = metrics }
}

// Manager управляет всеми матчами сервера: у каждого матча свой игровой цикл
type Manager struct {
	cfg     ManagerConfig
	bus     eventbus.EventBus
	results storage.ResultRepository
	metrics *Metrics

	mu      sync.RWMutex
	matches map[string]*managed
}

type managed struct {
	match  *Match
	cancel context.CancelFunc
	done   chan struct{}
	ended  bool // Цикл завершился итогом матча; защищено mgr.mu
}

// NewManager создаёт менеджер с проверенной конфигурацией
func NewManager(cfg ManagerConfig, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Physics.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second / 60
	}
	mgr := &Manager{
		cfg:     cfg,
		matches: make(map[string]*managed),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr, nil
}

// Rules правила по умолчанию для новых матчей
func (mgr *Manager) Rules() Rules { return mgr.cfg.Rules }

// Create создаёт матч с указанными правилами и запускает его цикл
func (mgr *Manager) Create(rules Rules) (*Match, error) {
	opts := []Option{WithMetrics(mgr.metrics)}
	if mgr.bus != nil {
		opts = append(opts, WithEventBus(mgr.bus))
	}
	m, err := NewMatch(uuid.NewString(), rules, mgr.cfg.Physics, opts...)
	if err != nil {
		return nil, err
	}

	mgr.mu.Lock()
	var evicted []*managed
	if mgr.cfg.MaxMatches > 0 && len(mgr.matches) >= mgr.cfg.MaxMatches {
		// Окончившиеся матчи уступают место новым
		evicted = mgr.evictEndedLocked()
	}
	if mgr.cfg.MaxMatches > 0 && len(mgr.matches) >= mgr.cfg.MaxMatches {
		mgr.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyMatches, mgr.cfg.MaxMatches)
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry := &managed{match: m, cancel: cancel, done: make(chan struct{})}
	mgr.matches[m.ID()] = entry
	mgr.mu.Unlock()

	for _, e := range evicted {
		e.match.Close()
	}
	if len(evicted) > 0 {
		logging.Debug("Освобождено окончившихся матчей: %d", len(evicted))
	}

	mgr.metrics.matchAdded()
	go mgr.run(ctx, entry)

	logging.Info("Создан матч %s (до %d очков)", m.ID(), rules.WinScore)
	return m, nil
}

func (mgr *Manager) run(ctx context.Context, e *managed) {
	defer close(e.done)

	err := e.match.Run(ctx, mgr.cfg.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Цикл матча %s завершился с ошибкой: %v", e.match.ID(), err)
	}
	if res, ok := e.match.Result(); ok {
		mgr.save(res)
		mgr.mu.Lock()
		e.ended = true
		mgr.mu.Unlock()
		mgr.metrics.matchRemoved()
	}
}

// evictEndedLocked убирает из карты матчи, чей цикл уже завершился итогом
func (mgr *Manager) evictEndedLocked() []*managed {
	var evicted []*managed
	for id, e := range mgr.matches {
		if e.ended {
			delete(mgr.matches, id)
			evicted = append(evicted, e)
		}
	}
	return evicted
}

func (mgr *Manager) save(res Result) {
	if mgr.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := mgr.results.Save(ctx, res.record()); err != nil {
		logging.Warn("Не удалось сохранить результат матча %s: %v", res.ID, err)
	}
}

func (r Result) record() storage.MatchResult {
	return storage.MatchResult{
		ID:         r.ID,
		Status:     r.Phase.String(),
		LeftScore:  r.Score.Left,
		RightScore: r.Score.Right,
		Winner:     r.Winner,
		Reason:     r.Reason,
		Ticks:      r.Ticks,
		SimSeconds: r.SimTime,
		StartedAt:  r.CreatedAt,
		EndedAt:    r.EndedAt,
	}
}

// Get возвращает матч по ID
func (mgr *Manager) Get(id string) (*Match, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	e, ok := mgr.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return e.match, nil
}

// List снимки всех матчей в порядке создания
func (mgr *Manager) List() []Snapshot {
	mgr.mu.RLock()
	matches := make([]*Match, 0, len(mgr.matches))
	for _, e := range mgr.matches {
		matches = append(matches, e.match)
	}
	mgr.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt().Equal(matches[j].CreatedAt()) {
			return matches[i].CreatedAt().Before(matches[j].CreatedAt())
		}
		return matches[i].ID() < matches[j].ID()
	})

	snaps := make([]Snapshot, 0, len(matches))
	for _, m := range matches {
		snaps = append(snaps, m.Snapshot())
	}
	return snaps
}

// Len количество матчей
func (mgr *Manager) Len() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}

// Remove останавливает цикл матча и удаляет его
func (mgr *Manager) Remove(id string) error {
	mgr.mu.Lock()
	e, ok := mgr.matches[id]
	if ok {
		delete(mgr.matches, id)
	}
	mgr.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}

	mgr.stop(e)
	return nil
}

// StopAll останавливает и удаляет все матчи
func (mgr *Manager) StopAll() {
	mgr.mu.Lock()
	entries := make([]*managed, 0, len(mgr.matches))
	for id, e := range mgr.matches {
		entries = append(entries, e)
		delete(mgr.matches, id)
	}
	mgr.mu.Unlock()

	for _, e := range entries {
		mgr.stop(e)
	}
	if len(entries) > 0 {
		logging.Info("Остановлено матчей: %d", len(entries))
	}
}

func (mgr *Manager) stop(e *managed) {
	e.cancel()
	<-e.done
	e.match.Close()

	mgr.mu.RLock()
	ended := e.ended
	mgr.mu.RUnlock()
	if !ended {
		mgr.metrics.matchRemoved()
	}
}

// Results последние сохранённые итоги матчей
func (mgr *Manager) Results(ctx context.Context, limit int) ([]storage.MatchResult, error) {
	if mgr.results == nil {
		return []storage.MatchResult{}, nil
	}
	return mgr.results.List(ctx, limit)
}
