package storage

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound результат матча не найден
var ErrNotFound = errors.New("storage: result not found")

// MatchResult итог завершённого матча
type MatchResult struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"` // finished | failed
	LeftScore  int       `json:"left_score"`
	RightScore int       `json:"right_score"`
	Winner     string    `json:"winner,omitempty"`
	Reason     string    `json:"reason,omitempty"` // Текст ошибки для failed
	Ticks      uint64    `json:"ticks"`
	SimSeconds float64   `json:"sim_seconds"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// ResultRepository хранилище результатов матчей.
// Результаты привязаны к ID матча; повторный Save перезаписывает запись.
type ResultRepository interface {
	// Save сохраняет результат матча.
	Save(ctx context.Context, r MatchResult) error

	// Get загружает результат по ID матча; ErrNotFound если записи нет.
	Get(ctx context.Context, id string) (MatchResult, error)

	// List возвращает до limit последних результатов, новые первыми.
	// limit <= 0: без ограничения.
	List(ctx context.Context, limit int) ([]MatchResult, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

func validate(r MatchResult) error {
	if r.ID == "" {
		return errors.New("недействительный ID матча: пустая строка")
	}
	return nil
}

// newestFirst сортировка и обрезка по limit
func newestFirst(results []MatchResult, limit int) []MatchResult {
	sort.Slice(results, func(i, j int) bool {
		if !results[i].EndedAt.Equal(results[j].EndedAt) {
			return results[i].EndedAt.After(results[j].EndedAt)
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
