package vec

import "math"

// DefaultEpsilon порог сравнения чисел с плавающей точкой по умолчанию
const DefaultEpsilon = 1e-6

// IsEqualF проверяет, что a и b отличаются не больше чем на eps
func IsEqualF(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// IsEqual2D покомпонентное сравнение векторов с допуском eps
func IsEqual2D(a, b Vec2, eps float64) bool {
	return IsEqualF(a.X, b.X, eps) && IsEqualF(a.Y, b.Y, eps)
}

// DistSquared2D квадрат расстояния между точками (без извлечения корня)
func DistSquared2D(a, b Vec2) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// SnapZero обнуляет компоненты, которые ближе к нулю чем eps.
// Убирает "хвосты" плавающей точки после интегрирования.
func SnapZero(v Vec2, eps float64) Vec2 {
	if IsEqualF(v.X, 0, eps) {
		v.X = 0
	}
	if IsEqualF(v.Y, 0, eps) {
		v.Y = 0
	}
	return v
}
