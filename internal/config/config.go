package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/pong-engine/internal/game"
	"github.com/annel0/pong-engine/internal/physics"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Physics   physics.Config  `yaml:"physics"`
	Game      game.Rules      `yaml:"game"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	RESTPort    int     `yaml:"rest_port"`
	MetricsPort int     `yaml:"metrics_port"`
	TickRateHz  float64 `yaml:"tick_rate_hz"` // Частота кадров цикла матча
	MaxMatches  int     `yaml:"max_matches"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`      // Каталог BadgerDB; пусто: хранение в памяти
	InMemory bool   `yaml:"in_memory"` // Badger в режиме InMemory
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // nats://...; пусто: in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" или "json"
	Dir    string `yaml:"dir"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Service  string `yaml:"service"`
	Endpoint string `yaml:"endpoint"` // OTLP/HTTP host:port
	Insecure bool   `yaml:"insecure"`
}

// Default конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			TickRateHz: 60,
			MaxMatches: 64,
		},
		Physics: physics.DefaultConfig(),
		Game:    game.DefaultRules(),
		EventBus: EventBusConfig{
			Stream:    "PONG",
			Retention: 24,
			Buffer:    1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Dir:    "logs",
		},
		Telemetry: TelemetryConfig{
			Service:  "pong-engine",
			Insecure: true,
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет секции, от которых зависит симуляция
func (c *Config) Validate() error {
	if err := c.Physics.Validate(); err != nil {
		return err
	}
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if !(c.Server.TickRateHz > 0) {
		return fmt.Errorf("config: tick_rate_hz=%g должен быть > 0", c.Server.TickRateHz)
	}
	return nil
}
