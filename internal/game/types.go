package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/pong-engine/internal/physics"
)

var (
	ErrMatchNotFound  = errors.New("game: match not found")
	ErrInvalidInput   = errors.New("game: invalid input")
	ErrInvalidPhase   = errors.New("game: invalid phase")
	ErrTooManyMatches = errors.New("game: too many matches")
)

// Side сторона поля
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Opposite другая сторона
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

func (s Side) valid() bool { return s == Left || s == Right }

// MarshalText для JSON
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText для JSON
func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide разбирает "left"/"right"
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: side %q", ErrInvalidInput, s)
}

// Phase фаза матча
type Phase int

const (
	Preparing Phase = iota // Мяч в центре, ждёт подачи
	Playing
	Paused
	Finished
	Failed // Физика вернула ошибку, матч остановлен
)

func (p Phase) String() string {
	switch p {
	case Preparing:
		return "preparing"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText для JSON
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText для JSON
func (p *Phase) UnmarshalText(b []byte) error {
	for candidate := Preparing; candidate <= Failed; candidate++ {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: phase %q", ErrInvalidPhase, b)
}

// Over матч завершён и больше не продвигается
func (p Phase) Over() bool { return p == Finished || p == Failed }

// Score счёт матча
type Score struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

func (s *Score) add(side Side) {
	if side == Left {
		s.Left++
	} else {
		s.Right++
	}
}

func (s Score) of(side Side) int {
	if side == Left {
		return s.Left
	}
	return s.Right
}

// PaddleState состояние ракетки для клиентов
type PaddleState struct {
	Y        float64 `json:"y"`
	Velocity float64 `json:"velocity"`
	Input    float64 `json:"input"`
}

// Snapshot копия состояния матча
type Snapshot struct {
	ID      string        `json:"id"`
	Phase   Phase         `json:"phase"`
	Score   Score         `json:"score"`
	Winner  string        `json:"winner,omitempty"`
	Ball    physics.State `json:"ball"`
	Left    PaddleState   `json:"left"`
	Right   PaddleState   `json:"right"`
	Ticks   uint64        `json:"ticks"`
	SimTime float64       `json:"sim_time"`
	Physics physics.Stats `json:"physics"`
	Error   string        `json:"error,omitempty"`
}
