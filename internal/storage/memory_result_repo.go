package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryResultRepo реализует ResultRepository в памяти.
// Используется, когда путь к BadgerDB не задан, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryResultRepo struct {
	mu   sync.RWMutex
	data map[string]MatchResult // matchID -> результат
}

// NewMemoryResultRepo создает новый репозиторий результатов в памяти.
func NewMemoryResultRepo() *MemoryResultRepo {
	return &MemoryResultRepo{
		data: make(map[string]MatchResult),
	}
}

// Save сохраняет результат в памяти.
func (r *MemoryResultRepo) Save(ctx context.Context, res MatchResult) error {
	if err := validate(res); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[res.ID] = res
	return nil
}

// Get загружает результат из памяти.
func (r *MemoryResultRepo) Get(ctx context.Context, id string) (MatchResult, error) {
	select {
	case <-ctx.Done():
		return MatchResult{}, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.data[id]
	if !ok {
		return MatchResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return res, nil
}

// List возвращает последние результаты.
func (r *MemoryResultRepo) List(ctx context.Context, limit int) ([]MatchResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	results := make([]MatchResult, 0, len(r.data))
	for _, res := range r.data {
		results = append(results, res)
	}
	r.mu.RUnlock()

	return newestFirst(results, limit), nil
}

// Count возвращает количество сохраненных результатов (для отладки).
func (r *MemoryResultRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close для памяти ничего не делает
func (r *MemoryResultRepo) Close() error { return nil }
