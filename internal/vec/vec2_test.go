package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2_Arithmetic(t *testing.T) {
	a := Vec2{X: 1, Y: 2}
	b := Vec2{X: 3, Y: -4}

	assert.Equal(t, Vec2{X: 4, Y: -2}, a.Add(b), "Сумма векторов")
	assert.Equal(t, Vec2{X: -2, Y: 6}, a.Sub(b), "Разность векторов")
	assert.Equal(t, Vec2{X: 2, Y: 4}, a.Mul(2), "Умножение на скаляр")
	assert.Equal(t, 5.0, b.Length(), "Длина вектора (3,-4) должна быть 5")
	assert.Equal(t, Vec2{}, Zero().Normalized(), "Нормализация нулевого вектора даёт ноль")
	assert.InDelta(t, 1.0, b.Normalized().Length(), 1e-12)
}

func TestVec2_Distance(t *testing.T) {
	a := Vec2{X: 0, Y: 0}
	b := Vec2{X: 3, Y: 4}

	assert.Equal(t, 25.0, DistSquared2D(a, b))
	assert.Equal(t, 5.0, a.DistanceTo(b))
}

func TestVec2_IsFinite(t *testing.T) {
	assert.True(t, Vec2{X: 1, Y: -1}.IsFinite())
	assert.False(t, Vec2{X: math.NaN()}.IsFinite())
	assert.False(t, Vec2{Y: math.Inf(-1)}.IsFinite())
}

func TestEpsilon_Helpers(t *testing.T) {
	assert.True(t, IsEqualF(1.0, 1.0+1e-9, DefaultEpsilon))
	assert.False(t, IsEqualF(1.0, 1.1, DefaultEpsilon))
	assert.True(t, IsEqual2D(Vec2{X: 1, Y: 2}, Vec2{X: 1 + 1e-8, Y: 2 - 1e-8}, DefaultEpsilon))

	snapped := SnapZero(Vec2{X: 1e-9, Y: -3}, DefaultEpsilon)
	assert.Equal(t, 0.0, snapped.X, "Малая компонента должна стать ровно 0")
	assert.Equal(t, -3.0, snapped.Y, "Большая компонента не меняется")
}
