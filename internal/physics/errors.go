package physics

import "errors"

var (
	// ErrNotFound сущность с таким ID не зарегистрирована в мире
	ErrNotFound = errors.New("physics: entity not found")

	// ErrUnimplemented пара столкновения, которую движок не умеет разрешать
	// (круг + круг, динамика + динамика, неизвестная форма)
	ErrUnimplemented = errors.New("physics: collision not implemented")

	// ErrInvalidShape неположительный или нечисловой размер формы
	ErrInvalidShape = errors.New("physics: invalid shape")

	// ErrInvalidStep шаг времени dt должен быть конечным и положительным
	ErrInvalidStep = errors.New("physics: invalid time step")

	// ErrInvalidConfig некорректные параметры мира
	ErrInvalidConfig = errors.New("physics: invalid config")
)

// ErrInvalidState состояние после SetState содержит NaN или Inf
var ErrInvalidState = errors.New("physics: invalid entity state")
