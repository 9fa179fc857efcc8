package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/annel0/pong-engine/internal/config"
	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/game"
	"github.com/annel0/pong-engine/internal/logging"
)

func main() {
	var (
		frames     = flag.Int("frames", 600, "Количество кадров")
		fps        = flag.Float64("fps", 60, "Частота кадров")
		configPath = flag.String("config", "", "YAML конфигурация (секции physics и game)")
		seed       = flag.Int64("seed", 1, "Seed генератора подачи")
		autopilot  = flag.Bool("ai", false, "Обе ракетки следят за мячом")
		events     = flag.Bool("events", false, "Печатать события матча")
		asJSON     = flag.Bool("json", false, "Итоговый снимок в JSON")
	)
	flag.Parse()

	if *frames <= 0 || !(*fps > 0) {
		log.Fatalf("❌ frames и fps должны быть > 0")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	logging.SetDefaultLogger(logging.NewNopLogger())

	bus := eventbus.NewMemoryBus(cfg.EventBus.Buffer)
	defer bus.Close()
	if *events {
		if _, err := bus.Subscribe(context.Background(), eventbus.Filter{}, printEvent); err != nil {
			log.Fatalf("❌ Ошибка подписки на события: %v", err)
		}
	}

	m, err := game.NewMatch("sim", cfg.Game, cfg.Physics, game.WithSeed(*seed), game.WithEventBus(bus))
	if err != nil {
		log.Fatalf("❌ Ошибка создания матча: %v", err)
	}
	defer m.Close()

	frame := 1 / *fps
	started := time.Now()
	played := 0
	for ; played < *frames; played++ {
		if *autopilot {
			steer(m)
		}
		if err := m.Advance(frame); err != nil {
			log.Fatalf("❌ Кадр %d: %v", played, err)
		}
		if m.Phase().Over() {
			played++
			break
		}
	}

	snap := m.Snapshot()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			log.Fatalf("❌ %v", err)
		}
		return
	}

	fmt.Printf("🏓 Кадров: %d (%.2f с симуляции, %d шагов) за %v\n",
		played, snap.SimTime, snap.Ticks, time.Since(started).Round(time.Millisecond))
	fmt.Printf("   Фаза: %s, счёт %d:%d", snap.Phase, snap.Score.Left, snap.Score.Right)
	if snap.Winner != "" {
		fmt.Printf(", победитель %s", snap.Winner)
	}
	fmt.Println()
	fmt.Printf("   Мяч: позиция (%.3f, %.3f), скорость (%.3f, %.3f)\n",
		snap.Ball.Position.X, snap.Ball.Position.Y, snap.Ball.Velocity.X, snap.Ball.Velocity.Y)
	fmt.Printf("   Ракетки: left y=%.3f, right y=%.3f\n", snap.Left.Y, snap.Right.Y)
}

// steer ведёт обе ракетки к мячу: пропорционально смещению с демпфированием по скорости
func steer(m *game.Match) {
	snap := m.Snapshot()
	for side, p := range map[game.Side]game.PaddleState{game.Left: snap.Left, game.Right: snap.Right} {
		dir := (snap.Ball.Position.Y-p.Y)/2 - p.Velocity/30
		if err := m.SetInput(side, dir); err != nil {
			log.Fatalf("❌ Ввод %s: %v", side, err)
		}
	}
}

func printEvent(_ context.Context, ev *eventbus.Envelope) {
	fmt.Printf("📨 %s %-15s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.EventType, ev.Payload)
}
