package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(id string, ended time.Time) MatchResult {
	return MatchResult{
		ID:         id,
		Status:     "finished",
		LeftScore:  5,
		RightScore: 3,
		Winner:     "left",
		Ticks:      12000,
		SimSeconds: 42.5,
		StartedAt:  ended.Add(-time.Minute),
		EndedAt:    ended,
	}
}

// repos обе реализации ResultRepository проходят одинаковые проверки
func repos(t *testing.T) map[string]ResultRepository {
	t.Helper()
	badgerRepo, err := NewBadgerResultRepo("", true)
	require.NoError(t, err)

	tempDir := t.TempDir()
	diskRepo, err := NewBadgerResultRepo(tempDir, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		badgerRepo.Close()
		diskRepo.Close()
	})
	return map[string]ResultRepository{
		"memory":        NewMemoryResultRepo(),
		"badger_memory": badgerRepo,
		"badger_disk":   diskRepo,
	}
}

func TestResultRepository_SaveGet(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ended := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			want := sampleResult("m1", ended)

			require.NoError(t, repo.Save(ctx, want))

			got, err := repo.Get(ctx, "m1")
			require.NoError(t, err)
			assert.Equal(t, want.LeftScore, got.LeftScore)
			assert.Equal(t, want.Winner, got.Winner)
			assert.True(t, want.EndedAt.Equal(got.EndedAt))

			// Перезапись
			want.Status = "failed"
			want.Reason = "physics: unimplemented"
			require.NoError(t, repo.Save(ctx, want))
			got, err = repo.Get(ctx, "m1")
			require.NoError(t, err)
			assert.Equal(t, "failed", got.Status)
			assert.Equal(t, "physics: unimplemented", got.Reason)
		})
	}
}

func TestResultRepository_NotFound(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestResultRepository_Validation(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, repo.Save(context.Background(), MatchResult{}))
		})
	}
}

func TestResultRepository_ListNewestFirst(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, repo.Save(ctx, sampleResult("a", base)))
			require.NoError(t, repo.Save(ctx, sampleResult("b", base.Add(2*time.Hour))))
			require.NoError(t, repo.Save(ctx, sampleResult("c", base.Add(time.Hour))))

			all, err := repo.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

			top, err := repo.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, "b", top[0].ID)
		})
	}
}

func TestResultRepository_CancelledContext(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.ErrorIs(t, repo.Save(ctx, sampleResult("x", time.Now())), context.Canceled)
			_, err := repo.List(ctx, 0)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestBadgerResultRepo_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerResultRepo(dir, false)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sampleResult("persist", time.Now().UTC())))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close(), "повторное закрытие безопасно")

	_, err = repo.Get(ctx, "persist")
	assert.Error(t, err, "закрытое хранилище не отвечает")

	reopened, err := NewBadgerResultRepo(dir, false)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, 5, got.LeftScore)
}
