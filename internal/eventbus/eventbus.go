package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed шина закрыта
var ErrClosed = errors.New("eventbus: closed")

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID        string            `json:"id"`         // UUID события
	Timestamp time.Time         `json:"timestamp"`  // Время создания (UTC)
	Source    string            `json:"source"`     // Имя сервиса-источника
	EventType string            `json:"event_type"` // match.point, ball.impact…
	Version   int               `json:"version"`    // Версия схемы полезной нагрузки
	MatchID   string            `json:"match_id"`   // Матч, к которому относится событие
	Priority  int               `json:"priority"`   // 0=Low … 9=Critical (для backpressure)
	Payload   []byte            `json:"payload"`    // JSON полезной нагрузки
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope создаёт событие с JSON-полезной нагрузкой
func NewEnvelope(source, eventType, matchID string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		MatchID:   matchID,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает JSON-полезную нагрузку в out
func (e *Envelope) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто: все типы.
	Matches []string // Если пусто: все матчи.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

// memoryBus доставляет события каждому подписчику через его собственную
// очередь, поэтому порядок событий для подписчика сохраняется.
type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	stats       Stats
	capacity    int
	closed      bool
}

type subscriber struct {
	filter Filter
	queue  chan *Envelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryBus создаёт in-memory шину; capacity: размер очереди каждого подписчика.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &memoryBus{
		subscribers: make(map[int]*subscriber),
		capacity:    capacity,
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		if matchFilter(ev, sub.filter) {
			subs = append(subs, sub)
		}
	}
	mb.mu.RUnlock()

	var dropped uint64
	for _, sub := range subs {
		select {
		case sub.queue <- ev:
			continue
		case <-sub.ctx.Done():
			continue
		default:
		}
		// Очередь заполнена: дропаем низкий приоритет (<5)
		if ev.Priority < 5 {
			dropped++
			continue
		}
		// Для High-priority блокируем до освобождения места или отмены контекста
		select {
		case sub.queue <- ev:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	mb.mu.Lock()
	mb.stats.Published++
	mb.stats.Dropped += dropped
	mb.mu.Unlock()
	return nil
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, ErrClosed
	}

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		filter: f,
		queue:  make(chan *Envelope, mb.capacity),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	mb.subscribers[id] = sub
	go mb.deliver(sub, h)

	return &memSub{bus: mb, id: id}, nil
}

// deliver вызывает handler для событий подписчика по порядку
func (mb *memoryBus) deliver(sub *subscriber, h Handler) {
	defer close(sub.done)
	for {
		select {
		case <-sub.ctx.Done():
			return
		case ev := <-sub.queue:
			h(sub.ctx, ev)
			mb.mu.Lock()
			mb.stats.Consumed++
			mb.mu.Unlock()
		}
	}
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	for _, sub := range mb.subscribers {
		s.InFlight += len(sub.queue)
	}
	return s
}

// Close отписывает всех подписчиков и ждёт завершения их обработчиков
func (mb *memoryBus) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	subs := mb.subscribers
	mb.subscribers = make(map[int]*subscriber)
	mb.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	return nil
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.MatchID, f.Matches)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	sub, ok := s.bus.subscribers[s.id]
	if ok {
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
	if ok {
		sub.cancel()
	}
}
