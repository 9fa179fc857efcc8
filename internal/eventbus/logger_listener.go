package eventbus

import (
	"context"

	"github.com/annel0/pong-engine/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// События с приоритетом от 7 (очки, итоги матча) идут на INFO, остальные на DEBUG.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		log := logging.Debug
		if ev.Priority >= 7 {
			log = logging.Info
		}
		log("[EventBus] %s match=%s prio=%d %s", ev.EventType, ev.MatchID, ev.Priority, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
