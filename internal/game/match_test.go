package game

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/physics"
	"github.com/annel0/pong-engine/internal/vec"
)

const frame = 1.0 / 60

// fastRules правила без паузы перед подачей
func fastRules() Rules {
	r := DefaultRules()
	r.BallPrepare = 0
	return r
}

type recorder struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (r *recorder) handle(_ context.Context, ev *eventbus.Envelope) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(eventType string) []*eventbus.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*eventbus.Envelope
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestMatch(t *testing.T, rules Rules, opts ...Option) *Match {
	t.Helper()
	m, err := NewMatch("test-match", rules, physics.DefaultConfig(), append([]Option{WithSeed(42)}, opts...)...)
	require.NoError(t, err)
	return m
}

func newRecordedMatch(t *testing.T, rules Rules) (*Match, *recorder) {
	t.Helper()
	bus := eventbus.NewMemoryBus(1024)
	t.Cleanup(func() { bus.Close() })

	rec := &recorder{}
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, rec.handle)
	require.NoError(t, err)
	return newTestMatch(t, rules, WithEventBus(bus)), rec
}

// playUntil продвигает матч кадрами, пока cond не станет истинным
func playUntil(t *testing.T, m *Match, maxSeconds float64, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	for elapsed := 0.0; elapsed < maxSeconds; elapsed += frame {
		require.NoError(t, m.Advance(frame))
		if snap := m.Snapshot(); cond(snap) {
			return snap
		}
	}
	t.Fatalf("условие не выполнено за %.1f с", maxSeconds)
	return Snapshot{}
}

func TestNewMatch_InvalidRules(t *testing.T) {
	rules := DefaultRules()
	rules.WinScore = 0
	_, err := NewMatch("x", rules, physics.DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidRules)

	cfg := physics.DefaultConfig()
	cfg.ContactEpsilon = 0
	_, err = NewMatch("x", DefaultRules(), cfg)
	assert.ErrorIs(t, err, physics.ErrInvalidConfig)
}

func TestNewMatch_BoundsStepsPerFrame(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Rules, *physics.Config)
		ok     bool
	}{
		{"по умолчанию", func(*Rules, *physics.Config) {}, true},
		{"предельная скорость мяча", func(r *Rules, _ *physics.Config) { r.MaxBallSpeed = MaxBallSpeedLimit }, true},
		{"скорость мяча выше предела", func(r *Rules, _ *physics.Config) { r.MaxBallSpeed = 1e6 }, false},
		{"крошечный допуск контакта", func(_ *Rules, c *physics.Config) { c.ContactEpsilon = 1e-6 }, false},
		{"огромный кадр", func(r *Rules, _ *physics.Config) { r.MaxFrame = 60 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, cfg := DefaultRules(), physics.DefaultConfig()
			tt.modify(&rules, &cfg)
			m, err := NewMatch("x", rules, cfg)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidRules)
				return
			}
			require.NoError(t, err)

			// Худший кадр укладывается в предел подшагов
			n, err := m.stepper.Advance(math.Inf(1), func(float64) error { return nil })
			require.NoError(t, err)
			assert.LessOrEqual(t, n, maxFrameSteps)
		})
	}
}

func TestMatch_InitialSnapshot(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	snap := m.Snapshot()

	assert.Equal(t, "test-match", snap.ID)
	assert.Equal(t, Preparing, snap.Phase)
	assert.Equal(t, Score{}, snap.Score)
	assert.Equal(t, vec.Vec2{}, snap.Ball.Position)
	assert.Equal(t, vec.Vec2{}, snap.Ball.Velocity)
	assert.Zero(t, snap.Left.Y)
	assert.Zero(t, snap.Right.Y)
	assert.Empty(t, snap.Winner)
}

func TestMatch_SubStepBoundedByContactEpsilon(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	maxMove := m.stepper.MaxStep * m.rules.MaxBallSpeed
	assert.Less(t, maxMove, physics.DefaultConfig().ContactEpsilon)
	assert.LessOrEqual(t, m.stepper.MaxStep, m.rules.MaxSubStep)
}

func TestMatch_LongFrameCountsDroppedTime(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	m := newTestMatch(t, DefaultRules(), WithMetrics(metrics))

	require.NoError(t, m.Advance(frame))
	assert.Zero(t, testutil.ToFloat64(metrics.dropped))

	require.NoError(t, m.Advance(1.0))
	assert.InDelta(t, 1.0-m.rules.MaxFrame, testutil.ToFloat64(metrics.dropped), 1e-9)

	require.NoError(t, m.Advance(math.Inf(1)))
	assert.InDelta(t, 1.0-m.rules.MaxFrame, testutil.ToFloat64(metrics.dropped), 1e-9)
}

func TestMatch_ServeAfterPrepare(t *testing.T) {
	rules := DefaultRules()
	rules.BallPrepare = 100 * time.Millisecond
	m, rec := newRecordedMatch(t, rules)

	require.NoError(t, m.Advance(0.05))
	assert.Equal(t, Preparing, m.Phase())
	assert.Equal(t, vec.Vec2{}, m.Snapshot().Ball.Velocity)

	require.NoError(t, m.Advance(0.06))
	snap := m.Snapshot()
	assert.Equal(t, Playing, snap.Phase)
	assert.InDelta(t, rules.MinBallSpeed, snap.Ball.Velocity.Length(), 1e-9)
	assert.InDelta(t, rules.MinBallSpeed*math.Cos(serveAngle), math.Abs(snap.Ball.Velocity.X), 1e-9)

	require.Eventually(t, func() bool { return len(rec.ofType(EventMatchStarted)) == 1 },
		time.Second, 5*time.Millisecond)
	ev := rec.ofType(EventMatchStarted)[0]
	assert.Equal(t, "test-match", ev.MatchID)
}

func TestMatch_MissedBallScoresForOpponent(t *testing.T) {
	m, rec := newRecordedMatch(t, fastRules())

	var lastX float64
	snap := playUntil(t, m, 5, func(s Snapshot) bool {
		if s.Score.Left+s.Score.Right == 1 {
			return true
		}
		lastX = s.Ball.Position.X
		return false
	})

	wantScorer := Right
	if lastX > 0 {
		wantScorer = Left
	}
	assert.Equal(t, 1, snap.Score.of(wantScorer))
	assert.Less(t, snap.Ball.Position.Length(), 1.0, "мяч возвращается в центр")
	assert.Equal(t, snap.Ticks, snap.Physics.Steps, "каждый подшаг матча это шаг мира")
	assert.GreaterOrEqual(t, snap.Physics.Stops, uint64(1), "ворота останавливают мяч")

	require.Eventually(t, func() bool { return len(rec.ofType(EventMatchPoint)) == 1 },
		time.Second, 5*time.Millisecond)
	var point PointEvent
	require.NoError(t, rec.ofType(EventMatchPoint)[0].Decode(&point))
	assert.Equal(t, wantScorer, point.Scorer)
	assert.Equal(t, snap.Score, point.Score)
}

func TestMatch_FinishesAtWinScore(t *testing.T) {
	rules := fastRules()
	rules.WinScore = 2
	m, rec := newRecordedMatch(t, rules)

	snap := playUntil(t, m, 10, func(s Snapshot) bool { return s.Phase == Finished })
	assert.Equal(t, 2, snap.Score.Left+snap.Score.Right, "без ввода все подачи уходят в одни ворота")
	assert.NotEmpty(t, snap.Winner)

	// После окончания матч не продвигается
	ticks := snap.Ticks
	require.NoError(t, m.Advance(frame))
	assert.Equal(t, ticks, m.Snapshot().Ticks)

	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, Finished, res.Phase)
	assert.Equal(t, snap.Winner, res.Winner)
	assert.False(t, res.EndedAt.IsZero())

	require.Eventually(t, func() bool { return len(rec.ofType(EventMatchFinished)) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Len(t, rec.ofType(EventMatchPoint), 2)
}

func TestMatch_ResultUnavailableWhilePlaying(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestMatch_PaddleHitSpeedsUpBall(t *testing.T) {
	rules := fastRules()
	m, rec := newRecordedMatch(t, rules)

	// Обе ракетки следят за мячом (PD-регулятор по смещению и скорости)
	track := func(s Snapshot) {
		for side, p := range map[Side]PaddleState{Left: s.Left, Right: s.Right} {
			dir := (s.Ball.Position.Y-p.Y)/2 - p.Velocity/30
			require.NoError(t, m.SetInput(side, dir))
		}
	}

	var maxSpeed float64
	snap := m.Snapshot()
	for elapsed := 0.0; elapsed < 3; elapsed += frame {
		track(snap)
		require.NoError(t, m.Advance(frame))
		snap = m.Snapshot()
		maxSpeed = math.Max(maxSpeed, snap.Ball.Velocity.Length())
	}

	assert.Greater(t, maxSpeed, rules.MinBallSpeed, "удар ракеткой ускоряет мяч")
	assert.LessOrEqual(t, maxSpeed, rules.MaxBallSpeed+1e-9)

	require.Eventually(t, func() bool {
		for _, ev := range rec.ofType(EventBallImpact) {
			var impact ImpactEvent
			if ev.Decode(&impact) == nil && impact.Target == "paddle" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestMatch_SetInput(t *testing.T) {
	m := newTestMatch(t, DefaultRules())

	assert.ErrorIs(t, m.SetInput(Side(5), 1), ErrInvalidInput)
	assert.ErrorIs(t, m.SetInput(Left, math.NaN()), ErrInvalidInput)

	require.NoError(t, m.SetInput(Left, 7))
	require.NoError(t, m.SetInput(Right, -0.5))
	snap := m.Snapshot()
	assert.Equal(t, 1.0, snap.Left.Input)
	assert.Equal(t, -0.5, snap.Right.Input)
}

func TestMatch_PaddleStopsAtWall(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	require.NoError(t, m.SetInput(Left, 1))

	for i := 0; i < 60; i++ {
		require.NoError(t, m.Advance(frame))
	}
	snap := m.Snapshot()
	assert.InDelta(t, paddleLimit(), snap.Left.Y, 1e-9)
	assert.Zero(t, snap.Left.Velocity)
	assert.Zero(t, snap.Right.Y, "правая ракетка без ввода стоит")

	// Без ввода ракетка тормозит и останавливается
	require.NoError(t, m.SetInput(Left, -1))
	require.NoError(t, m.Advance(0.05))
	require.NoError(t, m.SetInput(Left, 0))
	for i := 0; i < 30; i++ {
		require.NoError(t, m.Advance(frame))
	}
	snap = m.Snapshot()
	assert.Zero(t, snap.Left.Velocity)
	assert.Less(t, snap.Left.Y, paddleLimit())
}

func TestMatch_PauseResume(t *testing.T) {
	m := newTestMatch(t, DefaultRules())

	require.NoError(t, m.Advance(frame))
	require.NoError(t, m.Pause())
	assert.Equal(t, Paused, m.Phase())
	assert.ErrorIs(t, m.Pause(), ErrInvalidPhase)

	ticks := m.Snapshot().Ticks
	require.NoError(t, m.Advance(1))
	assert.Equal(t, ticks, m.Snapshot().Ticks, "на паузе время не идёт")

	require.NoError(t, m.Resume())
	assert.Equal(t, Preparing, m.Phase())
	assert.ErrorIs(t, m.Resume(), ErrInvalidPhase)
}

func TestMatch_PhysicsErrorFailsMatch(t *testing.T) {
	m, rec := newRecordedMatch(t, fastRules())

	// Второе движущееся тело на пути мяча: dynamic + dynamic не поддерживается
	intruder, err := physics.NewRect(physics.Movable, physics.Elastic, 1, 1, vec.Vec2{})
	require.NoError(t, err)
	intruder.Velocity = vec.Vec2{Y: 1}
	_, err = m.world.AddObject(intruder)
	require.NoError(t, err)

	err = m.Advance(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, physics.ErrUnimplemented)
	assert.Equal(t, Failed, m.Phase())
	assert.ErrorIs(t, m.Advance(frame), physics.ErrUnimplemented)

	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, Failed, res.Phase)
	assert.Contains(t, res.Reason, "unimplemented")
	assert.NotEmpty(t, m.Snapshot().Error)

	require.Eventually(t, func() bool { return len(rec.ofType(EventMatchFailed)) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestMatch_UnstickPushesBallOut(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	m.phase = Playing
	require.NoError(t, m.world.SetState(m.arena.ball, func(physics.State) physics.State {
		return physics.State{
			Position: vec.Vec2{X: -PaddleX, Y: 0},
			Velocity: vec.Vec2{X: -1},
		}
	}))

	dt := m.stepper.MaxStep
	for i := 0; i < m.rules.WallStuckThreshold; i++ {
		require.NoError(t, m.step(dt))
		hit, err := m.world.Overlapping(m.arena.ball, m.arena.leftPaddle)
		require.NoError(t, err)
		require.True(t, hit, "до порога мяч остаётся внутри")
	}

	require.NoError(t, m.step(dt))
	ball, err := m.world.GetState(m.arena.ball)
	require.NoError(t, err)
	assert.InDelta(t, -PaddleX+PaddleWidth/2+BallRadius+unstickGap, ball.Position.X, 1e-6)
	assert.Greater(t, ball.Velocity.X, 0.0, "мяч летит от ракетки")
}

func TestMatch_Subscribe(t *testing.T) {
	m := newTestMatch(t, fastRules())

	ch, cancel := m.Subscribe(4)
	require.NoError(t, m.Advance(frame))

	select {
	case snap := <-ch:
		assert.Equal(t, "test-match", snap.ID)
		assert.Positive(t, snap.Ticks)
	case <-time.After(time.Second):
		t.Fatal("снимок не получен")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	ch2, _ := m.Subscribe(1)
	m.Close()
	_, open = <-ch2
	assert.False(t, open)

	ch3, _ := m.Subscribe(1)
	_, open = <-ch3
	assert.False(t, open, "после Close подписка сразу закрыта")
}

func TestMatch_RunStopsOnCancel(t *testing.T) {
	m := newTestMatch(t, DefaultRules())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Run(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, m.Snapshot().Ticks)
}

func TestSide_Parse(t *testing.T) {
	s, err := ParseSide("LEFT")
	require.NoError(t, err)
	assert.Equal(t, Left, s)
	assert.Equal(t, Left, Right.Opposite())

	_, err = ParseSide("up")
	assert.ErrorIs(t, err, ErrInvalidInput)

	var side Side
	require.NoError(t, side.UnmarshalText([]byte("right")))
	assert.Equal(t, Right, side)
}
