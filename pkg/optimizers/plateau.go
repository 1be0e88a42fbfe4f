package optimizers

// ReduceLROnPlateau - уменьшает темп обучения, когда наблюдаемая метрика
// (обычно validation loss) перестает улучшаться в течение patience эпох.
// Формула: lr = lr * factor после patience эпох без улучшения.
type ReduceLROnPlateau struct {
	factor    float64 // Коэффициент уменьшения (обычно 0.1-0.5)
	patience  int     // Количество эпох без улучшения до уменьшения
	minLR     float64 // Нижняя граница Learning Rate
	threshold float64 // Минимальное изменение, считающееся улучшением

	bestLoss  float64 // Лучшее наблюдаемое значение метрики
	numBad    int     // Количество эпох без улучшения подряд
	lastLoss  float64 // Последнее наблюдаемое значение метрики
	observed  bool    // Была ли метрика передана хотя бы раз
	lastLR    float64 // Последний вычисленный Learning Rate
}

// NewReduceLROnPlateau создает новый экземпляр ReduceLROnPlateau scheduler.
// initialLR - начальный Learning Rate
// factor - коэффициент уменьшения (обычно 0.1)
// patience - количество эпох без улучшения до уменьшения
// minLR - нижняя граница Learning Rate
func NewReduceLROnPlateau(initialLR, factor float64, patience int, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		factor:    factor,
		patience:  patience,
		minLR:     minLR,
		threshold: 1e-4,
		bestLoss:  0,
		lastLR:    initialLR,
	}
}

// Observe принимает значение метрики за прошедшую эпоху. Вызывается перед
// Step; без вызова Observe очередной Step не меняет Learning Rate.
func (r *ReduceLROnPlateau) Observe(loss float64) {
	r.lastLoss = loss
	if !r.observed {
		r.observed = true
		r.bestLoss = loss
		return
	}
	if loss < r.bestLoss-r.threshold {
		r.bestLoss = loss
		r.numBad = 0
	} else {
		r.numBad++
	}
}

// Step вызывается после каждой эпохи для обновления Learning Rate.
func (r *ReduceLROnPlateau) Step() float64 {
	if r.observed && r.numBad >= r.patience {
		next := r.lastLR * r.factor
		if next < r.minLR {
			next = r.minLR
		}
		r.lastLR = next
		r.numBad = 0
	}
	return r.lastLR
}

// GetLastLR возвращает последний вычисленный Learning Rate.
func (r *ReduceLROnPlateau) GetLastLR() float64 {
	return r.lastLR
}
