package physics

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/pong-engine/internal/vec"
)

// World владеет всеми телами и продвигает симуляцию шагами Update.
// Не потокобезопасен: все вызовы должны идти из одной горутины
// или под внешним мьютексом.
type World struct {
	cfg      Config
	nextID   EntityID
	entities map[EntityID]*Entity
	order    []EntityID // Все тела в порядке возрастания ID (кандидаты в столкновения)
	movable  []EntityID // Тела с Motion == Movable, в порядке возрастания ID
	stats    Stats

	saved []State // Буфер для отката неудачного шага
}

// Stats накопленные счётчики шагов и контактов
type Stats struct {
	Steps    uint64 `json:"steps"`
	Failed   uint64 `json:"failed"`
	Contacts uint64 `json:"contacts"` // Подтверждённые контакты
	Bounces  uint64 `json:"bounces"`  // Упругие отражения
	Stops    uint64 `json:"stops"`    // Неупругие остановки
}

// contact пара из широкой фазы: collider движется, collidee проверяется против него
type contact struct {
	collider *Entity
	collidee *Entity
}

// NewWorld создаёт пустой мир с проверенной конфигурацией
func NewWorld(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &World{
		cfg:      cfg,
		entities: make(map[EntityID]*Entity),
	}, nil
}

// Config возвращает конфигурацию мира
func (w *World) Config() Config { return w.cfg }

// Stats возвращает копию счётчиков
func (w *World) Stats() Stats { return w.stats }

// Len количество зарегистрированных тел
func (w *World) Len() int { return len(w.entities) }

// IDs возвращает ID всех тел по возрастанию
func (w *World) IDs() []EntityID {
	ids := make([]EntityID, len(w.order))
	copy(ids, w.order)
	return ids
}

// AddObject регистрирует тела и выдаёт им ID в порядке аргументов.
// Мир хранит собственные копии: дальнейшие изменения переданных
// структур на симуляцию не влияют.
func (w *World) AddObject(entities ...*Entity) ([]EntityID, error) {
	for i, e := range entities {
		if e == nil {
			return nil, fmt.Errorf("%w: entity #%d is nil", ErrInvalidShape, i)
		}
		if err := validateShape(e.Shape); err != nil {
			return nil, fmt.Errorf("entity #%d: %w", i, err)
		}
		if !e.Position.IsFinite() || !e.Velocity.IsFinite() || !e.Acceleration.IsFinite() {
			return nil, fmt.Errorf("%w: entity #%d", ErrInvalidState, i)
		}
	}

	ids := make([]EntityID, 0, len(entities))
	for _, e := range entities {
		id := w.nextID
		w.nextID++

		stored := *e
		stored.ID = id
		w.entities[id] = &stored
		w.order = append(w.order, id)
		if stored.Motion == Movable {
			w.movable = append(w.movable, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RemoveObject удаляет тело. ID оставшихся тел не меняются,
// удалённый ID повторно не выдаётся.
func (w *World) RemoveObject(id EntityID) error {
	if _, ok := w.entities[id]; !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	delete(w.entities, id)
	w.order = removeID(w.order, id)
	w.movable = removeID(w.movable, id)
	return nil
}

func removeID(ids []EntityID, id EntityID) []EntityID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

// Update выполняет один шаг симуляции длиной dt секунд:
// скорости, затем позиции, затем поиск и разрешение столкновений.
// При ошибке состояние всех тел откатывается к началу шага.
func (w *World) Update(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt=%g", ErrInvalidStep, dt)
	}

	w.save()
	w.updateVelocities(dt)
	w.updatePositions(dt)

	step, err := w.handleCollisions()
	if err != nil {
		w.restore()
		w.stats.Failed++
		return err
	}

	w.stats.Steps++
	w.stats.Contacts += step.Contacts
	w.stats.Bounces += step.Bounces
	w.stats.Stops += step.Stops
	return nil
}

func (w *World) save() {
	w.saved = w.saved[:0]
	for _, id := range w.movable {
		w.saved = append(w.saved, w.entities[id].State())
	}
}

func (w *World) restore() {
	for i, id := range w.movable {
		w.entities[id].apply(w.saved[i])
	}
}

func (w *World) updateVelocities(dt float64) {
	eps := w.cfg.VelocityEpsilon
	for _, id := range w.movable {
		e := w.entities[id]
		e.Acceleration = vec.SnapZero(e.Acceleration, eps)
		start := vec.SnapZero(e.Velocity, eps)
		e.Velocity = vec.SnapZero(start.Add(e.Acceleration.Mul(dt)), eps)
	}
}

func (w *World) updatePositions(dt float64) {
	eps := w.cfg.VelocityEpsilon
	for _, id := range w.movable {
		e := w.entities[id]
		e.Position = vec.SnapZero(e.Position.Add(e.Velocity.Mul(dt)), eps)
	}
}

// isMoving тело участвует в широкой фазе как collider
func (w *World) isMoving(e *Entity) bool {
	return e.Motion == Movable && e.IsMoving(w.cfg.VelocityEpsilon)
}

func (w *World) handleCollisions() (Stats, error) {
	var step Stats

	contacts, err := w.gatherCollisions()
	if err != nil {
		return step, err
	}

	for _, c := range contacts {
		switch c.collidee.Motion {
		case Immovable:
			switch w.resolveWithStatic(c.collider, c.collidee) {
			case outcomeBounce:
				step.Contacts++
				step.Bounces++
			case outcomeStop:
				step.Contacts++
				step.Stops++
			}
		case Movable:
			return step, fmt.Errorf("%w: dynamic + dynamic (ids %d, %d)",
				ErrUnimplemented, c.collider.ID, c.collidee.ID)
		default:
			return step, fmt.Errorf("%w: motion %v", ErrUnimplemented, c.collidee.Motion)
		}
	}
	return step, nil
}

// gatherCollisions широкая фаза. Каждое движущееся тело (по возрастанию ID)
// проверяется против уже найденных движущихся, затем каждое движущееся
// против всех неподвижных. Каждая неупорядоченная пара проверяется один раз.
func (w *World) gatherCollisions() ([]contact, error) {
	var (
		contacts []contact
		moving   []*Entity
		isMover  = make(map[EntityID]bool)
	)

	for _, id := range w.order {
		e := w.entities[id]
		if !w.isMoving(e) {
			continue
		}
		for _, other := range moving {
			hit, err := Overlaps(e, other)
			if err != nil {
				return nil, err
			}
			if hit {
				contacts = append(contacts, contact{collider: e, collidee: other})
			}
		}
		moving = append(moving, e)
		isMover[id] = true
	}

	for _, m := range moving {
		for _, id := range w.order {
			if isMover[id] {
				continue
			}
			other := w.entities[id]
			hit, err := Overlaps(m, other)
			if err != nil {
				return nil, err
			}
			if hit {
				contacts = append(contacts, contact{collider: m, collidee: other})
			}
		}
	}
	return contacts, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeBounce
	outcomeStop
)

// resolveWithStatic разрешает контакт движущегося тела с неподвижным.
// Ось считается столкнувшейся, только если тело движется к collidee
// и зазор между ведущим ребром и ребром collidee меньше ContactEpsilon;
// тогда collider прижимается вплотную к collidee.
func (w *World) resolveWithStatic(collider, collidee *Entity) outcome {
	ch := collider.HalfExtents()
	half := ch.Add(collidee.HalfExtents())

	dx := collider.Position.X - collidee.Position.X
	dy := collider.Position.Y - collidee.Position.Y
	if dx*dx >= half.X*half.X || dy*dy >= half.Y*half.Y {
		return outcomeNone
	}

	eps := w.cfg.ContactEpsilon
	v := collider.Velocity

	hitX := false
	switch {
	case v.X > 0 && collider.Position.X < collidee.Position.X &&
		math.Abs(collider.Right()-collidee.Left()) < eps:
		collider.Position.X = collidee.Left() - ch.X
		hitX = true
	case v.X < 0 && collider.Position.X > collidee.Position.X &&
		math.Abs(collider.Left()-collidee.Right()) < eps:
		collider.Position.X = collidee.Right() + ch.X
		hitX = true
	}

	hitY := false
	switch {
	case v.Y > 0 && collider.Position.Y < collidee.Position.Y &&
		math.Abs(collider.Top()-collidee.Bottom()) < eps:
		collider.Position.Y = collidee.Bottom() - ch.Y
		hitY = true
	case v.Y < 0 && collider.Position.Y > collidee.Position.Y &&
		math.Abs(collider.Bottom()-collidee.Top()) < eps:
		collider.Position.Y = collidee.Top() + ch.Y
		hitY = true
	}

	if !hitX && !hitY {
		return outcomeNone
	}

	if collider.Response == Elastic && collidee.Response == Elastic {
		if hitX {
			collider.Velocity.X = -collider.Velocity.X
		}
		if hitY {
			collider.Velocity.Y = -collider.Velocity.Y
		}
		return outcomeBounce
	}

	collider.Velocity = vec.Vec2{}
	collider.Acceleration = vec.Vec2{}
	return outcomeStop
}

// AllStates снимок состояния всех тел. Изменение результата на мир не влияет.
func (w *World) AllStates() map[EntityID]State {
	states := make(map[EntityID]State, len(w.entities))
	for id, e := range w.entities {
		states[id] = e.State()
	}
	return states
}

// GetState состояние одного тела
func (w *World) GetState(id EntityID) (State, error) {
	e, ok := w.entities[id]
	if !ok {
		return State{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return e.State(), nil
}

// SetState заменяет состояние тела результатом updater от текущего состояния.
// Единственная точка внешнего изменения тел; применяется сразу,
// то есть до интегрирования скоростей следующего Update.
func (w *World) SetState(id EntityID, updater func(State) State) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	next := updater(e.State())
	if !next.Position.IsFinite() || !next.Velocity.IsFinite() || !next.Acceleration.IsFinite() {
		return fmt.Errorf("%w: id=%d", ErrInvalidState, id)
	}
	e.apply(next)
	return nil
}

// Entity возвращает копию тела (форма, классы, состояние)
func (w *World) Entity(id EntityID) (Entity, error) {
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return *e, nil
}

// Overlapping узкая фаза для пары тел по ID
func (w *World) Overlapping(a, b EntityID) (bool, error) {
	ea, ok := w.entities[a]
	if !ok {
		return false, fmt.Errorf("%w: id=%d", ErrNotFound, a)
	}
	eb, ok := w.entities[b]
	if !ok {
		return false, fmt.Errorf("%w: id=%d", ErrNotFound, b)
	}
	return Overlaps(ea, eb)
}
