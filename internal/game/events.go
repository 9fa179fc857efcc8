package game

import "github.com/annel0/pong-engine/internal/vec"

// Типы событий матча в шине
const (
	EventMatchStarted  = "match.started"
	EventBallImpact    = "ball.impact"
	EventMatchPoint    = "match.point"
	EventMatchFinished = "match.finished"
	EventMatchFailed   = "match.failed"
)

// Приоритеты: удары можно терять при переполнении очереди, счёт нельзя
const (
	priorityImpact = 1
	priorityStart  = 5
	priorityPoint  = 7
	priorityFinal  = 9
)

// StartedEvent полезная нагрузка match.started
type StartedEvent struct {
	ServeTo Side `json:"serve_to"`
}

// ImpactEvent полезная нагрузка ball.impact
type ImpactEvent struct {
	Target   string   `json:"target"` // paddle | wall
	Side     string   `json:"side,omitempty"`
	Speed    float64  `json:"speed"`
	Position vec.Vec2 `json:"position"`
}

// PointEvent полезная нагрузка match.point
type PointEvent struct {
	Scorer Side  `json:"scorer"`
	Score  Score `json:"score"`
}

// FinishedEvent полезная нагрузка match.finished
type FinishedEvent struct {
	Winner  Side    `json:"winner"`
	Score   Score   `json:"score"`
	SimTime float64 `json:"sim_time"`
}

// FailedEvent полезная нагрузка match.failed
type FailedEvent struct {
	Reason string `json:"reason"`
}
