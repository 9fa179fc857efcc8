package physics

import (
	"testing"

	"github.com/annel0/pong-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectVsRect(t *testing.T) {
	base := Box{Left: 0, Right: 2, Bottom: 0, Top: 2}

	cases := []struct {
		name  string
		other Box
		want  bool
	}{
		{"overlap", Box{Left: 1, Right: 3, Bottom: 1, Top: 3}, true},
		{"contained", Box{Left: 0.5, Right: 1.5, Bottom: 0.5, Top: 1.5}, true},
		{"touching edge", Box{Left: 2, Right: 4, Bottom: 0, Top: 2}, false},
		{"separated x", Box{Left: 3, Right: 4, Bottom: 0, Top: 2}, false},
		{"overlap x only", Box{Left: 1, Right: 3, Bottom: 5, Top: 6}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RectVsRect(base, tc.other))
			assert.Equal(t, tc.want, RectVsRect(tc.other, base), "Проверка должна быть симметричной")
		})
	}
}

func TestCircleVsRect(t *testing.T) {
	box := Box{Left: -1, Right: 1, Bottom: -1, Top: 1}

	assert.True(t, CircleVsRect(vec.Vec2{X: 0, Y: 0}, 0.5, box), "Центр внутри прямоугольника")
	assert.True(t, CircleVsRect(vec.Vec2{X: 1.4, Y: 0}, 0.5, box), "Пересечение с боковой гранью")
	assert.False(t, CircleVsRect(vec.Vec2{X: 1.5, Y: 0}, 0.5, box), "Касание не считается пересечением")
	// Угол: ограничивающие прямоугольники пересекаются, а круг нет
	assert.False(t, CircleVsRect(vec.Vec2{X: 1.4, Y: 1.4}, 0.5, box))
	assert.True(t, CircleVsRect(vec.Vec2{X: 1.3, Y: 1.3}, 0.5, box))
}

func TestOverlaps_Dispatch(t *testing.T) {
	ball, err := NewCircle(Movable, Elastic, 1, vec.Vec2{X: 0, Y: 0})
	require.NoError(t, err)
	wall, err := NewRect(Immovable, Elastic, 1, 20, vec.Vec2{X: 1.2, Y: 0})
	require.NoError(t, err)
	far, err := NewRect(Immovable, Elastic, 1, 1, vec.Vec2{X: 5, Y: 5})
	require.NoError(t, err)

	hit, err := Overlaps(ball, wall)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = Overlaps(wall, ball)
	require.NoError(t, err)
	assert.True(t, hit, "Порядок аргументов не важен")

	hit, err = Overlaps(wall, far)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestOverlaps_CircleCircleUnimplemented(t *testing.T) {
	a, err := NewCircle(Movable, Elastic, 1, vec.Vec2{})
	require.NoError(t, err)
	b, err := NewCircle(Immovable, Elastic, 1, vec.Vec2{X: 10})
	require.NoError(t, err)

	_, err = Overlaps(a, b)
	assert.ErrorIs(t, err, ErrUnimplemented)
	assert.Contains(t, err.Error(), "circle(r=1) + circle(r=1)")
}
