package physics

import (
	"fmt"

	"github.com/annel0/pong-engine/internal/vec"
)

// Box ограничивающий прямоугольник, выровненный по осям (ось Y вверх)
type Box struct {
	Left, Right, Bottom, Top float64
}

// BoxAround строит прямоугольник по центру и половинам размеров
func BoxAround(center, half vec.Vec2) Box {
	return Box{
		Left:   center.X - half.X,
		Right:  center.X + half.X,
		Bottom: center.Y - half.Y,
		Top:    center.Y + half.Y,
	}
}

// Contains проверяет, лежит ли точка внутри прямоугольника (границы включены)
func (b Box) Contains(p vec.Vec2) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Bottom && p.Y <= b.Top
}

// Clamp возвращает ближайшую к p точку прямоугольника
func (b Box) Clamp(p vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: clamp(p.X, b.Left, b.Right), Y: clamp(p.Y, b.Bottom, b.Top)}
}

// RectVsRect проверяет пересечение двух прямоугольников по обеим осям.
// Касание границами пересечением не считается.
func RectVsRect(a, b Box) bool {
	return a.Left < b.Right &&
		a.Right > b.Left &&
		a.Bottom < b.Top &&
		a.Top > b.Bottom
}

// CircleVsRect проверяет пересечение круга с прямоугольником через ближайшую точку
func CircleVsRect(center vec.Vec2, radius float64, b Box) bool {
	nearest := b.Clamp(center)
	return vec.DistSquared2D(center, nearest) < radius*radius
}

// Overlaps узкая фаза: точная проверка пересечения двух тел по их формам.
// Круг + круг не поддерживается и возвращает ErrUnimplemented.
func Overlaps(a, b *Entity) (bool, error) {
	switch sa := a.Shape.(type) {
	case Circle:
		switch b.Shape.(type) {
		case Circle:
			return false, unimplemented(a, b)
		case Rect:
			return CircleVsRect(a.Position, sa.Radius, b.Bounds()), nil
		}
	case Rect:
		switch sb := b.Shape.(type) {
		case Circle:
			return CircleVsRect(b.Position, sb.Radius, a.Bounds()), nil
		case Rect:
			return RectVsRect(a.Bounds(), b.Bounds()), nil
		}
	}
	return false, unimplemented(a, b)
}

func unimplemented(a, b *Entity) error {
	return fmt.Errorf("%w: %v + %v", ErrUnimplemented, a.Shape, b.Shape)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
