package physics

import (
	"fmt"
	"math"

	"github.com/annel0/pong-engine/internal/vec"
)

// Shape закрытый вариант формы тела: Circle или Rect.
// Новые формы добавляются только внутри пакета.
type Shape interface {
	// HalfExtents половины размеров ограничивающего прямоугольника
	HalfExtents() vec.Vec2
	String() string
	sealed()
}

// Circle круг заданного радиуса
type Circle struct {
	Radius float64
}

// Rect прямоугольник, выровненный по осям
type Rect struct {
	Width  float64
	Height float64
}

func (c Circle) HalfExtents() vec.Vec2 { return vec.Vec2{X: c.Radius, Y: c.Radius} }
func (c Circle) String() string        { return fmt.Sprintf("circle(r=%g)", c.Radius) }
func (Circle) sealed()                 {}

func (r Rect) HalfExtents() vec.Vec2 { return vec.Vec2{X: r.Width * 0.5, Y: r.Height * 0.5} }
func (r Rect) String() string        { return fmt.Sprintf("rect(%gx%g)", r.Width, r.Height) }
func (Rect) sealed()                 {}

// Motion определяет, участвует ли тело в интегрировании
type Motion uint8

const (
	Movable   Motion = iota // Скорость и позиция интегрируются каждый шаг
	Immovable               // Никогда не двигается сам, но с ним можно столкнуться
)

func (m Motion) String() string {
	switch m {
	case Movable:
		return "MOVABLE"
	case Immovable:
		return "IMMOVABLE"
	default:
		return "UNKNOWN"
	}
}

// Response определяет реакцию движущегося тела на контакт с неподвижным
type Response uint8

const (
	Elastic   Response = iota // Отражение скорости по оси контакта
	Inelastic                 // Полная остановка (скорость и ускорение = 0)
)

func (r Response) String() string {
	switch r {
	case Elastic:
		return "ELASTIC"
	case Inelastic:
		return "INELASTIC"
	default:
		return "UNKNOWN"
	}
}

func validSize(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validateShape(s Shape) error {
	switch sh := s.(type) {
	case Circle:
		if !validSize(sh.Radius) {
			return fmt.Errorf("%w: radius %g", ErrInvalidShape, sh.Radius)
		}
	case Rect:
		if !validSize(sh.Width) || !validSize(sh.Height) {
			return fmt.Errorf("%w: size %gx%g", ErrInvalidShape, sh.Width, sh.Height)
		}
	default:
		return fmt.Errorf("%w: unsupported shape %T", ErrInvalidShape, s)
	}
	return nil
}
