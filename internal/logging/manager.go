package logging

import (
	"errors"
	"sort"
	"sync"
)

// LoggerManager выдаёт логгеры компонентов с общими опциями
type LoggerManager struct {
	mu      sync.Mutex
	opts    Options
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// NewLoggerManager пустой менеджер с заданными опциями
func NewLoggerManager(opts Options) *LoggerManager {
	return &LoggerManager{opts: opts, loggers: make(map[string]*Logger)}
}

// GetLoggerManager глобальный менеджер
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager(DefaultOptions())
	})
	return globalManager
}

// SetOptions опции для логгеров, создаваемых после вызова
func (lm *LoggerManager) SetOptions(opts Options) {
	lm.mu.Lock()
	lm.opts = opts
	lm.mu.Unlock()
}

// Component логгер компонента; создаётся при первом обращении.
// Если файл логов открыть не удалось, возвращает глобальный логгер.
func (lm *LoggerManager) Component(name string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[name]; ok {
		return l
	}
	l, err := NewLoggerWithOptions(name, lm.opts)
	if err != nil {
		current().Warn("логгер компонента %s недоступен: %v", name, err)
		return current()
	}
	lm.loggers[name] = l
	return l
}

// Components имена созданных логгеров по алфавиту
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает все логгеры компонентов
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for _, l := range lm.loggers {
		errs = append(errs, l.Close())
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// GetAPILogger логгер HTTP-слоя
func GetAPILogger() *Logger {
	return GetLoggerManager().Component("api")
}
