package game

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/pong-engine/internal/eventbus"
	"github.com/annel0/pong-engine/internal/logging"
	"github.com/annel0/pong-engine/internal/physics"
	"github.com/annel0/pong-engine/internal/vec"
)

const (
	eventSource    = "pong-engine"
	publishTimeout = 100 * time.Millisecond

	serveAngle      = math.Pi / 6 // 30°
	paddleStopSpeed = 1e-3        // Ниже этой скорости ракетка останавливается
	wallSlack       = 0.2         // Допуск при определении, во что ударился мяч
	unstickGap      = 0.01

	// maxFrameSteps предел подшагов за один кадр: Advance держит мьютекс матча
	maxFrameSteps = 20000
)

// Option настройка матча
type Option func(*Match)

// WithEventBus публиковать события матча в bus
func WithEventBus(bus eventbus.EventBus) Option {
	return func(m *Match) { m.bus = bus }
}

// WithMetrics учитывать матч в метриках
func WithMetrics(metrics *Metrics) Option {
	return func(m *Match) { m.metrics = metrics }
}

// WithSeed фиксирует генератор случайных чисел (направление подачи)
func WithSeed(seed int64) Option {
	return func(m *Match) { m.rng = rand.New(rand.NewSource(seed)) }
}

// Match один матч Pong поверх физического мира.
// Все методы потокобезопасны.
type Match struct {
	id        string
	rules     Rules
	stepper   Stepper
	createdAt time.Time

	mu        sync.Mutex
	world     *physics.World
	arena     arena
	phase     Phase
	resume    Phase // Фаза, в которую вернёт Resume
	score     Score
	winner    Side
	input     [2]float64
	paddleVel [2]float64
	stuck     [2]int
	prepare   float64 // Осталось до подачи, с
	serveTo   Side
	started   bool
	ticks     uint64
	simTime   float64
	endedAt   time.Time
	err       error
	pending   []*eventbus.Envelope
	rng       *rand.Rand

	bus     eventbus.EventBus
	metrics *Metrics

	obsMu     sync.Mutex
	observers map[int]chan Snapshot
	nextObs   int
	closed    bool
}

// NewMatch создаёт матч в фазе подготовки к первой подаче
func NewMatch(id string, rules Rules, cfg physics.Config, opts ...Option) (*Match, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	world, err := physics.NewWorld(cfg)
	if err != nil {
		return nil, err
	}
	step := subStep(rules, cfg)
	if steps := math.Ceil(rules.MaxFrame / step); steps > maxFrameSteps {
		return nil, fmt.Errorf("%w: %g подшагов по %g с на кадр, предел %d",
			ErrInvalidRules, steps, step, maxFrameSteps)
	}
	a, err := buildArena(world)
	if err != nil {
		return nil, err
	}

	m := &Match{
		id:    id,
		rules: rules,
		stepper: Stepper{
			MaxStep:  step,
			MaxFrame: rules.MaxFrame,
		},
		createdAt: time.Now().UTC(),
		world:     world,
		arena:     a,
		phase:     Preparing,
		prepare:   rules.BallPrepare.Seconds(),
		observers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m.serveTo = Side(m.rng.Intn(2))
	return m, nil
}

// subStep подшаг, за который мяч на максимальной скорости смещается
// не больше чем на половину ContactEpsilon
func subStep(r Rules, cfg physics.Config) float64 {
	return math.Min(r.MaxSubStep, cfg.ContactEpsilon/(2*r.MaxBallSpeed))
}

// ID идентификатор матча
func (m *Match) ID() string { return m.id }

// Rules правила матча
func (m *Match) Rules() Rules { return m.rules }

// CreatedAt время создания матча (UTC)
func (m *Match) CreatedAt() time.Time { return m.createdAt }

// Phase текущая фаза
func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Err ошибка, остановившая матч
func (m *Match) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// SetInput задаёт направление ракетки: -1 вниз, 0 стоп, 1 вверх.
// Значения вне диапазона обрезаются.
func (m *Match) SetInput(side Side, direction float64) error {
	if !side.valid() {
		return fmt.Errorf("%w: side %d", ErrInvalidInput, side)
	}
	if math.IsNaN(direction) {
		return fmt.Errorf("%w: direction NaN", ErrInvalidInput)
	}
	direction = math.Max(-1, math.Min(1, direction))

	m.mu.Lock()
	m.input[side] = direction
	m.mu.Unlock()
	return nil
}

// Pause приостанавливает матч
func (m *Match) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Playing && m.phase != Preparing {
		return fmt.Errorf("%w: pause from %s", ErrInvalidPhase, m.phase)
	}
	m.resume = m.phase
	m.phase = Paused
	return nil
}

// Resume продолжает приостановленный матч
func (m *Match) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Paused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidPhase, m.phase)
	}
	m.phase = m.resume
	return nil
}

// Advance продвигает матч на elapsed секунд реального времени.
// На паузе и после окончания ничего не делает. Ошибка физики переводит
// матч в Failed и возвращается вызывающему.
func (m *Match) Advance(elapsed float64) error {
	start := time.Now()

	m.mu.Lock()
	switch m.phase {
	case Paused, Finished:
		m.mu.Unlock()
		return nil
	case Failed:
		err := m.err
		m.mu.Unlock()
		return err
	}

	var dropped float64
	if limit := m.rules.MaxFrame; limit > 0 && elapsed > limit && !math.IsInf(elapsed, 1) {
		dropped = elapsed - limit
	}
	n, err := m.stepper.Advance(elapsed, m.step)
	if err != nil {
		err = fmt.Errorf("match %s: %w", m.id, err)
		m.fail(err)
	}
	snap := m.snapshotLocked()
	events := m.pending
	m.pending = nil
	over := m.phase.Over()
	m.mu.Unlock()

	if dropped > 0 {
		logging.Debug("Матч %s: кадр %.3f с обрезан до %.3f с", m.id, elapsed, m.rules.MaxFrame)
		m.metrics.droppedTime(dropped)
	}
	m.metrics.frame(n, time.Since(start).Seconds())
	m.publish(events)
	m.broadcast(snap)
	if over {
		m.closeObservers()
	}
	return err
}

// Run продвигает матч по реальным часам каждые tick до окончания матча
// или отмены ctx. Время, проведённое на паузе, не накапливается.
func (m *Match) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Second / 60
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			if err := m.Advance(elapsed); err != nil {
				return err
			}
			if m.Phase().Over() {
				return nil
			}
		}
	}
}

// step один подшаг: ракетки, подача, физика, затем игровые правила
func (m *Match) step(dt float64) error {
	if m.phase.Over() {
		return nil
	}
	if err := m.movePaddles(dt); err != nil {
		return err
	}
	if m.phase == Preparing {
		m.prepare -= dt
		if m.prepare <= 0 {
			if err := m.serve(); err != nil {
				return err
			}
		}
	}

	before, err := m.world.GetState(m.arena.ball)
	if err != nil {
		return err
	}
	if err := m.world.Update(dt); err != nil {
		return err
	}
	m.ticks++
	m.simTime += dt

	if m.phase != Playing {
		return nil
	}
	after, err := m.world.GetState(m.arena.ball)
	if err != nil {
		return err
	}
	if err := m.detectImpacts(before, after); err != nil {
		return err
	}
	if err := m.unstick(); err != nil {
		return err
	}
	return m.detectPoint()
}

// movePaddles интегрирует скорость ракеток по вводу и двигает их через SetState.
// Физическая скорость ракеток остаётся нулевой.
func (m *Match) movePaddles(dt float64) error {
	ref := dt / m.rules.MaxSubStep
	limit := paddleLimit()

	for _, side := range []Side{Left, Right} {
		v := m.paddleVel[side]
		if dir := m.input[side]; dir != 0 {
			v += dir * m.rules.PaddleAccel * ref
			v = math.Max(-m.rules.MaxPaddleSpeed, math.Min(m.rules.MaxPaddleSpeed, v))
		} else {
			v *= math.Pow(m.rules.PaddleDecelRatio, ref)
			if math.Abs(v) < paddleStopSpeed {
				v = 0
			}
		}

		atLimit := false
		err := m.world.SetState(m.arena.paddle(side), func(s physics.State) physics.State {
			y := s.Position.Y + v*dt
			if y > limit {
				y, atLimit = limit, true
			} else if y < -limit {
				y, atLimit = -limit, true
			}
			s.Position.Y = y
			return s
		})
		if err != nil {
			return err
		}
		if atLimit {
			v = 0
		}
		m.paddleVel[side] = v
	}
	return nil
}

// serve подаёт мяч из центра в сторону serveTo под углом ±30°
func (m *Match) serve() error {
	angle := serveAngle
	if m.rng.Intn(2) == 0 {
		angle = -angle
	}
	dirX := 1.0
	if m.serveTo == Left {
		dirX = -1
	}
	v := vec.Vec2{
		X: dirX * math.Cos(angle) * m.rules.MinBallSpeed,
		Y: math.Sin(angle) * m.rules.MinBallSpeed,
	}

	err := m.world.SetState(m.arena.ball, func(s physics.State) physics.State {
		return physics.State{Velocity: v}
	})
	if err != nil {
		return err
	}
	m.phase = Playing
	m.stuck = [2]int{}

	if !m.started {
		m.started = true
		m.emit(EventMatchStarted, priorityStart, StartedEvent{ServeTo: m.serveTo})
		logging.Info("🏓 Матч %s начат, подача: %s", m.id, m.serveTo)
	}
	return nil
}

// detectImpacts смена знака скорости по X означает удар ракеткой
// (боковые стены неупругие), по Y: удар о борт или торец ракетки
func (m *Match) detectImpacts(before, after physics.State) error {
	bv, av := before.Velocity, after.Velocity

	if bv.X != 0 && av.X != 0 && (bv.X > 0) != (av.X > 0) {
		side := Left
		if after.Position.X > 0 {
			side = Right
		}
		speed := av.Length()
		boosted := math.Max(m.rules.MinBallSpeed, math.Min(m.rules.MaxBallSpeed, speed*m.rules.BallSpeedUp))
		err := m.world.SetState(m.arena.ball, func(s physics.State) physics.State {
			s.Velocity = s.Velocity.Normalized().Mul(boosted)
			return s
		})
		if err != nil {
			return err
		}
		m.impact("paddle", side.String(), math.Abs(bv.X), after.Position)
	}

	if bv.Y != 0 && av.Y != 0 && (bv.Y > 0) != (av.Y > 0) {
		target := "paddle"
		if math.Abs(after.Position.Y) >= innerEdge-BallRadius-wallSlack {
			target = "wall"
		}
		m.impact(target, "", math.Abs(bv.Y), after.Position)
	}
	return nil
}

func (m *Match) impact(target, side string, speed float64, pos vec.Vec2) {
	m.metrics.impact(target)
	if speed >= m.rules.ImpactThreshold {
		m.emit(EventBallImpact, priorityImpact, ImpactEvent{
			Target:   target,
			Side:     side,
			Speed:    speed,
			Position: pos,
		})
	}
}

// unstick выталкивает мяч перед ракеткой, если он застрял в ней
// дольше WallStuckThreshold шагов подряд
func (m *Match) unstick() error {
	for _, side := range []Side{Left, Right} {
		hit, err := m.world.Overlapping(m.arena.ball, m.arena.paddle(side))
		if err != nil {
			return err
		}
		if !hit {
			m.stuck[side] = 0
			continue
		}
		m.stuck[side]++
		if m.stuck[side] <= m.rules.WallStuckThreshold {
			continue
		}
		m.stuck[side] = 0

		dir := 1.0
		if side == Right {
			dir = -1
		}
		err = m.world.SetState(m.arena.ball, func(s physics.State) physics.State {
			s.Position.X = paddleX(side) + dir*(PaddleWidth/2+BallRadius+unstickGap)
			s.Velocity.X = dir * math.Abs(s.Velocity.X)
			return s
		})
		if err != nil {
			return err
		}
		logging.Debug("Матч %s: мяч вытолкнут из ракетки %s", m.id, side)
	}
	return nil
}

// detectPoint мяч, остановившийся в игре, лежит в воротах:
// очко получает противоположная сторона
func (m *Match) detectPoint() error {
	ball, err := m.world.GetState(m.arena.ball)
	if err != nil {
		return err
	}
	if ball.Velocity != (vec.Vec2{}) {
		return nil
	}

	scorer := Right
	if ball.Position.X > 0 {
		scorer = Left
	}
	m.score.add(scorer)
	m.metrics.point(scorer)
	m.emit(EventMatchPoint, priorityPoint, PointEvent{Scorer: scorer, Score: m.score})
	logging.Info("Матч %s: очко стороне %s, счёт %d:%d", m.id, scorer, m.score.Left, m.score.Right)

	if m.score.of(scorer) >= m.rules.WinScore {
		m.finish(scorer)
		return nil
	}

	err = m.world.SetState(m.arena.ball, func(physics.State) physics.State {
		return physics.State{}
	})
	if err != nil {
		return err
	}
	m.phase = Preparing
	m.prepare = m.rules.BallPrepare.Seconds()
	m.serveTo = scorer.Opposite()
	return nil
}

func (m *Match) finish(winner Side) {
	m.phase = Finished
	m.winner = winner
	m.endedAt = time.Now().UTC()
	m.metrics.matchEnded(Finished.String())
	m.emit(EventMatchFinished, priorityFinal, FinishedEvent{
		Winner:  winner,
		Score:   m.score,
		SimTime: m.simTime,
	})
	logging.Info("🏁 Матч %s завершён, победила сторона %s (%d:%d)",
		m.id, winner, m.score.Left, m.score.Right)
}

func (m *Match) fail(err error) {
	m.phase = Failed
	m.err = err
	m.endedAt = time.Now().UTC()
	m.metrics.matchEnded(Failed.String())
	m.emit(EventMatchFailed, priorityFinal, FailedEvent{Reason: err.Error()})
	logging.Error("❌ Матч %s остановлен: %v", m.id, err)
}

// emit копит событие до выхода из-под мьютекса
func (m *Match) emit(eventType string, priority int, payload interface{}) {
	if m.bus == nil {
		return
	}
	env, err := eventbus.NewEnvelope(eventSource, eventType, m.id, priority, payload)
	if err != nil {
		logging.Warn("Матч %s: событие %s не создано: %v", m.id, eventType, err)
		return
	}
	m.pending = append(m.pending, env)
}

func (m *Match) publish(events []*eventbus.Envelope) {
	for _, ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.bus.Publish(ctx, ev); err != nil {
			logging.Warn("Матч %s: публикация %s: %v", m.id, ev.EventType, err)
		}
		cancel()
	}
}

// Snapshot копия текущего состояния матча
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:      m.id,
		Phase:   m.phase,
		Score:   m.score,
		Ticks:   m.ticks,
		SimTime: m.simTime,
		Physics: m.world.Stats(),
	}
	if m.phase == Finished {
		snap.Winner = m.winner.String()
	}
	if m.err != nil {
		snap.Error = m.err.Error()
	}
	states := m.world.AllStates()
	snap.Ball = states[m.arena.ball]
	snap.Left = PaddleState{
		Y:        states[m.arena.leftPaddle].Position.Y,
		Velocity: m.paddleVel[Left],
		Input:    m.input[Left],
	}
	snap.Right = PaddleState{
		Y:        states[m.arena.rightPaddle].Position.Y,
		Velocity: m.paddleVel[Right],
		Input:    m.input[Right],
	}
	return snap
}

// Result итог матча; ok == false пока матч не окончен
type Result struct {
	ID        string
	Phase     Phase
	Score     Score
	Winner    string
	Reason    string
	Ticks     uint64
	SimTime   float64
	CreatedAt time.Time
	EndedAt   time.Time
}

// Result возвращает итог окончившегося матча
func (m *Match) Result() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.phase.Over() {
		return Result{}, false
	}
	res := Result{
		ID:        m.id,
		Phase:     m.phase,
		Score:     m.score,
		Ticks:     m.ticks,
		SimTime:   m.simTime,
		CreatedAt: m.createdAt,
		EndedAt:   m.endedAt,
	}
	if m.phase == Finished {
		res.Winner = m.winner.String()
	}
	if m.err != nil {
		res.Reason = m.err.Error()
	}
	return res, true
}

// Subscribe подписка на снимки после каждого кадра. Медленный подписчик
// пропускает снимки. Канал закрывается по окончании матча, Close или cancel.
func (m *Match) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextObs
	m.nextObs++
	m.observers[id] = ch

	cancel := func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		if c, ok := m.observers[id]; ok {
			delete(m.observers, id)
			close(c)
		}
	}
	return ch, cancel
}

func (m *Match) broadcast(snap Snapshot) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	for _, ch := range m.observers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Match) closeObservers() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.closed = true
	for id, ch := range m.observers {
		delete(m.observers, id)
		close(ch)
	}
}

// Close отключает всех подписчиков. Состояние матча сохраняется.
func (m *Match) Close() {
	m.closeObservers()
}
