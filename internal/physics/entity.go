package physics

import (
	"math"

	"github.com/annel0/pong-engine/internal/vec"
)

// EntityID идентификатор тела, выдаётся миром при добавлении
type EntityID uint64

// Entity твёрдое тело без вращения
type Entity struct {
	ID           EntityID // Заполняется миром в AddObject
	Shape        Shape    // Неизменяема после создания
	Motion       Motion   // Movable / Immovable
	Response     Response // Elastic / Inelastic
	Position     vec.Vec2 // Центр тела
	Velocity     vec.Vec2
	Acceleration vec.Vec2
}

// State копия кинематического состояния тела
type State struct {
	Position     vec.Vec2 `json:"position"`
	Velocity     vec.Vec2 `json:"velocity"`
	Acceleration vec.Vec2 `json:"acceleration"`
}

// NewCircle создаёт круглое тело с нулевой скоростью и ускорением
func NewCircle(motion Motion, response Response, radius float64, center vec.Vec2) (*Entity, error) {
	return newEntity(Circle{Radius: radius}, motion, response, center)
}

// NewRect создаёт прямоугольное тело с нулевой скоростью и ускорением
func NewRect(motion Motion, response Response, width, height float64, center vec.Vec2) (*Entity, error) {
	return newEntity(Rect{Width: width, Height: height}, motion, response, center)
}

func newEntity(shape Shape, motion Motion, response Response, center vec.Vec2) (*Entity, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	return &Entity{
		Shape:    shape,
		Motion:   motion,
		Response: response,
		Position: center,
	}, nil
}

// HalfExtents половины ширины и высоты ограничивающего прямоугольника
func (e *Entity) HalfExtents() vec.Vec2 { return e.Shape.HalfExtents() }

// Width полная ширина ограничивающего прямоугольника
func (e *Entity) Width() float64 { return e.HalfExtents().X * 2 }

// Height полная высота ограничивающего прямоугольника
func (e *Entity) Height() float64 { return e.HalfExtents().Y * 2 }

func (e *Entity) Center() vec.Vec2 { return e.Position }
func (e *Entity) Left() float64    { return e.Position.X - e.HalfExtents().X }
func (e *Entity) Right() float64   { return e.Position.X + e.HalfExtents().X }
func (e *Entity) Top() float64     { return e.Position.Y + e.HalfExtents().Y }
func (e *Entity) Bottom() float64  { return e.Position.Y - e.HalfExtents().Y }

// Bounds ограничивающий прямоугольник тела
func (e *Entity) Bounds() Box {
	return Box{Left: e.Left(), Right: e.Right(), Bottom: e.Bottom(), Top: e.Top()}
}

// IsMoving true, если хотя бы одна компонента скорости больше eps по модулю
func (e *Entity) IsMoving(eps float64) bool {
	return math.Abs(e.Velocity.X) > eps || math.Abs(e.Velocity.Y) > eps
}

// State возвращает копию кинематического состояния
func (e *Entity) State() State {
	return State{
		Position:     e.Position,
		Velocity:     e.Velocity,
		Acceleration: e.Acceleration,
	}
}

func (e *Entity) apply(s State) {
	e.Position = s.Position
	e.Velocity = s.Velocity
	e.Acceleration = s.Acceleration
}
