package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const resultPrefix = "result:"

// BadgerResultRepo хранит результаты матчей в BadgerDB.
// Значения: JSON, ключ "result:<matchID>".
type BadgerResultRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerResultRepo открывает BadgerDB в dataPath/results.
// inMemory: без файлов на диске (тесты, эфемерные серверы).
func NewBadgerResultRepo(dataPath string, inMemory bool) (*BadgerResultRepo, error) {
	dbPath := filepath.Join(dataPath, "results")
	opts := badger.DefaultOptions(dbPath)
	if inMemory {
		dbPath = ""
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerResultRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (r *BadgerResultRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	return r.db.Close()
}

func (r *BadgerResultRepo) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

// Save сохраняет результат матча
func (r *BadgerResultRepo) Save(ctx context.Context, res MatchResult) error {
	if err := validate(res); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("ошибка сериализации результата: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(resultPrefix+res.ID), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Get загружает результат матча
func (r *BadgerResultRepo) Get(ctx context.Context, id string) (MatchResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return MatchResult{}, err
	}

	var res MatchResult
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resultPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return MatchResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return MatchResult{}, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return res, nil
}

// List читает все результаты по префиксу и возвращает последние
func (r *BadgerResultRepo) List(ctx context.Context, limit int) ([]MatchResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var results []MatchResult
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(resultPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var res MatchResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &res)
			})
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return newestFirst(results, limit), nil
}
