package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/pong-engine/internal/api"
	"github.com/annel0/pong-engine/internal/config"
	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/game"
	"github.com/annel0/pong-engine/internal/logging"
	"github.com/annel0/pong-engine/internal/observability"
	"github.com/annel0/pong-engine/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logOpts := logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.Level),
		FileLevel:    logging.TRACE,
		JSON:         cfg.Logging.Format == "json",
	}
	if err := logging.InitDefaultLoggerWithOptions("server", logOpts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().SetOptions(logOpts)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🏓 Запуск Pong Engine Server...")

	// === ТРАССИРОВКА ===
	shutdownTracing, err := observability.InitTelemetry(context.Background(), observability.Options{
		Enabled:  cfg.Telemetry.Enabled,
		Service:  cfg.Telemetry.Service,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации трассировки: %v", err)
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка создания шины событий: %v", err)
	}
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Не удалось подписать логгер событий: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))

	// === ХРАНИЛИЩЕ ===
	results, err := newResultRepo(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища результатов: %v", err)
	}

	// === МАТЧИ ===
	manager, err := game.NewManager(game.ManagerConfig{
		Rules:      cfg.Game,
		Physics:    cfg.Physics,
		Tick:       time.Duration(float64(time.Second) / cfg.Server.TickRateHz),
		MaxMatches: cfg.Server.MaxMatches,
	},
		game.WithBus(bus),
		game.WithResults(results),
		game.WithManagerMetrics(game.NewMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		log.Fatalf("❌ Ошибка создания менеджера матчей: %v", err)
	}

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Port:    restPort,
		Manager: manager,
		Logger:  logging.GetAPILogger(),
		Tracing: cfg.Telemetry.Enabled,
		Service: cfg.Telemetry.Service,
	})
	go func() {
		if err := server.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			os.Exit(1)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("💡 curl -X POST http://localhost%s/api/matches", restPort)

	// Ждем сигнала для завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	manager.StopAll()
	exporter.Stop()
	if err := bus.Close(); err != nil {
		logging.Warn("Ошибка закрытия шины событий: %v", err)
	}
	if err := results.Close(); err != nil {
		logging.Warn("Ошибка закрытия хранилища: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logging.Warn("Ошибка остановки трассировки: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий: in-memory (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	logging.Info("📨 Шина событий: NATS JetStream %s, поток %s", cfg.URL, cfg.Stream)
	return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
}

func newResultRepo(cfg config.StorageConfig) (storage.ResultRepository, error) {
	if cfg.Path == "" && !cfg.InMemory {
		logging.Info("💾 Результаты матчей хранятся в памяти")
		return storage.NewMemoryResultRepo(), nil
	}
	logging.Info("💾 Результаты матчей: BadgerDB %q (in-memory=%v)", cfg.Path, cfg.InMemory)
	return storage.NewBadgerResultRepo(cfg.Path, cfg.InMemory)
}
