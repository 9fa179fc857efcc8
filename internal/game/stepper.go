package game

import "math"

// stepTolerance остаток кадра меньше этого значения отбрасывается
const stepTolerance = 1e-9

// Stepper делит реальное время кадра на подшаги фиксированной длины,
// чтобы быстрые тела не проскакивали сквозь стены за один шаг.
type Stepper struct {
	MaxStep  float64 // Максимальная длина подшага, с
	MaxFrame float64 // Кадр длиннее этого значения обрезается; 0: без ограничения
}

// Advance вызывает step для подшагов, покрывающих elapsed секунд.
// Возвращает количество выполненных подшагов; останавливается на первой ошибке.
func (s Stepper) Advance(elapsed float64, step func(dt float64) error) (int, error) {
	if !(elapsed > 0) || !(s.MaxStep > 0) {
		return 0, nil
	}
	if s.MaxFrame > 0 && elapsed > s.MaxFrame {
		elapsed = s.MaxFrame
	}
	if math.IsInf(elapsed, 1) {
		return 0, nil
	}

	n := 0
	for remaining := elapsed; remaining > stepTolerance; {
		dt := math.Min(remaining, s.MaxStep)
		if err := step(dt); err != nil {
			return n, err
		}
		n++
		remaining -= dt
	}
	return n, nil
}
