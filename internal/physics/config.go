package physics

import (
	"fmt"
	"math"

	"github.com/annel0/pong-engine/internal/vec"
)

// Config числовые пороги мира. Значения подобраны эмпирически.
type Config struct {
	// VelocityEpsilon ниже этого порога компоненты скорости/ускорения/позиции обнуляются,
	// а тело не считается движущимся
	VelocityEpsilon float64 `yaml:"velocity_epsilon"`
	// ContactEpsilon максимальный зазор между рёбрами для подтверждения контакта
	ContactEpsilon float64 `yaml:"contact_epsilon"`
}

// DefaultConfig значения по умолчанию
func DefaultConfig() Config {
	return Config{
		VelocityEpsilon: vec.DefaultEpsilon,
		ContactEpsilon:  0.1,
	}
}

// Validate проверяет, что оба порога конечны и положительны
func (c Config) Validate() error {
	if !(c.VelocityEpsilon > 0) || math.IsInf(c.VelocityEpsilon, 0) {
		return fmt.Errorf("%w: velocity_epsilon=%g", ErrInvalidConfig, c.VelocityEpsilon)
	}
	if !(c.ContactEpsilon > 0) || math.IsInf(c.ContactEpsilon, 0) {
		return fmt.Errorf("%w: contact_epsilon=%g", ErrInvalidConfig, c.ContactEpsilon)
	}
	return nil
}
