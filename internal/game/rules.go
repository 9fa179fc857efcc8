package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRules некорректные правила матча
var ErrInvalidRules = errors.New("game: invalid rules")

// MaxBallSpeedLimit верхняя граница max_ball_speed: от неё зависит длина подшага
const MaxBallSpeedLimit = 1000.0

// Rules игровые константы Pong
type Rules struct {
	WinScore           int           `yaml:"win_score"`            // Очков до победы
	MaxSubStep         float64       `yaml:"max_sub_step"`         // Максимальный шаг физики, с
	MaxFrame           float64       `yaml:"max_frame"`            // Максимальная длительность кадра, с
	MaxPaddleSpeed     float64       `yaml:"max_paddle_speed"`     // Единиц/с
	PaddleAccel        float64       `yaml:"paddle_accel"`         // Прирост скорости за опорный шаг MaxSubStep
	PaddleDecelRatio   float64       `yaml:"paddle_decel_ratio"`   // Множитель скорости за опорный шаг без ввода
	ImpactThreshold    float64       `yaml:"impact_threshold"`     // Минимальная скорость для события удара
	WallStuckThreshold int           `yaml:"wall_stuck_threshold"` // Шагов внутри ракетки до выталкивания
	MaxBallSpeed       float64       `yaml:"max_ball_speed"`
	MinBallSpeed       float64       `yaml:"min_ball_speed"`
	BallSpeedUp        float64       `yaml:"ball_speed_up"` // Ускорение мяча при ударе ракеткой
	BallPrepare        time.Duration `yaml:"ball_prepare"`  // Пауза перед подачей
}

// DefaultRules значения из исходной конфигурации игры
func DefaultRules() Rules {
	return Rules{
		WinScore:           5,
		MaxSubStep:         0.01,
		MaxFrame:           0.25,
		MaxPaddleSpeed:     60,
		PaddleAccel:        15,
		PaddleDecelRatio:   0.5,
		ImpactThreshold:    0.3,
		WallStuckThreshold: 4,
		MaxBallSpeed:       100,
		MinBallSpeed:       10,
		BallSpeedUp:        1.1,
		BallPrepare:        1000 * time.Millisecond,
	}
}

// Validate проверяет согласованность правил
func (r Rules) Validate() error {
	switch {
	case r.WinScore <= 0:
		return fmt.Errorf("%w: win_score=%d", ErrInvalidRules, r.WinScore)
	case !(r.MaxSubStep > 0):
		return fmt.Errorf("%w: max_sub_step=%g", ErrInvalidRules, r.MaxSubStep)
	case r.MaxFrame < r.MaxSubStep:
		return fmt.Errorf("%w: max_frame=%g меньше max_sub_step", ErrInvalidRules, r.MaxFrame)
	case !(r.MaxPaddleSpeed > 0) || r.PaddleAccel < 0:
		return fmt.Errorf("%w: скорость ракетки", ErrInvalidRules)
	case r.PaddleDecelRatio < 0 || r.PaddleDecelRatio > 1:
		return fmt.Errorf("%w: paddle_decel_ratio=%g", ErrInvalidRules, r.PaddleDecelRatio)
	case !(r.MinBallSpeed > 0) || r.MaxBallSpeed < r.MinBallSpeed:
		return fmt.Errorf("%w: скорость мяча [%g, %g]", ErrInvalidRules, r.MinBallSpeed, r.MaxBallSpeed)
	case r.MaxBallSpeed > MaxBallSpeedLimit:
		return fmt.Errorf("%w: max_ball_speed=%g больше %g", ErrInvalidRules, r.MaxBallSpeed, MaxBallSpeedLimit)
	case r.BallSpeedUp < 1:
		return fmt.Errorf("%w: ball_speed_up=%g", ErrInvalidRules, r.BallSpeedUp)
	case r.WallStuckThreshold < 0 || r.BallPrepare < 0:
		return fmt.Errorf("%w: отрицательный порог", ErrInvalidRules)
	}
	return nil
}
