package game

import (
	"fmt"

	"github.com/annel0/pong-engine/internal/physics"
	"github.com/annel0/pong-engine/internal/vec"
)

// Геометрия поля. Стены толщиной 1 стоят на ±ArenaHalf.
const (
	ArenaHalf     = 10.0
	WallThickness = 1.0
	PaddleX       = 8.0
	PaddleWidth   = 0.5
	PaddleHeight  = 4.0
	BallRadius    = 1.0
)

// innerEdge внутренняя граница стены
const innerEdge = ArenaHalf - WallThickness/2

// arena ID тел поля в мире
type arena struct {
	ball                    physics.EntityID
	leftGoal, rightGoal     physics.EntityID
	top, bottom             physics.EntityID
	leftPaddle, rightPaddle physics.EntityID
}

func (a arena) paddle(side Side) physics.EntityID {
	if side == Left {
		return a.leftPaddle
	}
	return a.rightPaddle
}

// paddleLimit максимальное смещение центра ракетки по Y
func paddleLimit() float64 { return innerEdge - PaddleHeight/2 }

func paddleX(side Side) float64 {
	if side == Left {
		return -PaddleX
	}
	return PaddleX
}

// buildArena заполняет пустой мир: мяч, ворота, борта, ракетки.
// Боковые стены неупругие: мяч останавливается в воротах.
func buildArena(w *physics.World) (arena, error) {
	ball, err := physics.NewCircle(physics.Movable, physics.Elastic, BallRadius, vec.Zero())
	if err != nil {
		return arena{}, err
	}

	rect := func(resp physics.Response, width, height float64, x, y float64) *physics.Entity {
		e, rerr := physics.NewRect(physics.Immovable, resp, width, height, vec.Vec2{X: x, Y: y})
		if rerr != nil && err == nil {
			err = rerr
		}
		return e
	}
	bodies := []*physics.Entity{
		ball,
		rect(physics.Inelastic, WallThickness, 2*ArenaHalf, -ArenaHalf, 0),
		rect(physics.Inelastic, WallThickness, 2*ArenaHalf, ArenaHalf, 0),
		rect(physics.Elastic, 2*ArenaHalf, WallThickness, 0, ArenaHalf),
		rect(physics.Elastic, 2*ArenaHalf, WallThickness, 0, -ArenaHalf),
		rect(physics.Elastic, PaddleWidth, PaddleHeight, -PaddleX, 0),
		rect(physics.Elastic, PaddleWidth, PaddleHeight, PaddleX, 0),
	}
	if err != nil {
		return arena{}, err
	}

	ids, err := w.AddObject(bodies...)
	if err != nil {
		return arena{}, fmt.Errorf("build arena: %w", err)
	}
	return arena{
		ball:        ids[0],
		leftGoal:    ids[1],
		rightGoal:   ids[2],
		top:         ids[3],
		bottom:      ids[4],
		leftPaddle:  ids[5],
		rightPaddle: ids[6],
	}, nil
}
