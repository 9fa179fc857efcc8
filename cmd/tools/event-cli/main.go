package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/game"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

func main() {
	var (
		natsURL    = flag.String("url", "nats://localhost:4222", "NATS server URL")
		stream     = flag.String("stream", "PONG", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		matches    = flag.String("matches", "", "Match IDs filter (comma-separated)")
		duration   = flag.Duration("for", 0, "Stop after duration (0 = until Ctrl+C)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Matches: parseStringList(*matches),
	}

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, filter)
	case "stats":
		err = showStats(ctx, bus, filter)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// tailEvents выводит события в реальном времени
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter) error {
	fmt.Println("🎬 Tailing match events (Ctrl+C to stop)")

	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		count++
		printEvent(ev)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	sub.Unsubscribe()

	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats считает события по типам до остановки
func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter) error {
	var mu sync.Mutex
	byType := make(map[string]int)
	started := time.Now()

	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		byType[ev.EventType]++
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	types := make([]string, 0, len(byType))
	total := 0
	for t, n := range byType {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	fmt.Printf("Period: %s - %s\n", started.UTC().Format(timeFormat), time.Now().UTC().Format(timeFormat))
	fmt.Printf("Total events: %d\n", total)
	for _, t := range types {
		fmt.Printf("  %s: %d events\n", t, byType[t])
	}
	return nil
}

func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s match=%s p=%d\n",
		ev.Timestamp.Format(timeFormat), ev.EventType, ev.MatchID, ev.Priority)

	switch ev.EventType {
	case game.EventBallImpact:
		var e game.ImpactEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Target: %s Speed: %.2f At: (%.2f,%.2f)\n", e.Target, e.Speed, e.Position.X, e.Position.Y)
		}
	case game.EventMatchPoint:
		var e game.PointEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Scorer: %s Score: %d:%d\n", e.Scorer, e.Score.Left, e.Score.Right)
		}
	case game.EventMatchFinished:
		var e game.FinishedEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Winner: %s Score: %d:%d\n", e.Winner, e.Score.Left, e.Score.Right)
		}
	default:
		fmt.Printf("  %s\n", ev.Payload)
	}
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
