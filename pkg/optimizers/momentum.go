package optimizers

import "github.com/plandes/dltools/pkg/tensor/graph"

// MomentumOption - функциональная опция для настройки оптимизатора Momentum,
// тот же паттерн, что и RMSPropOption.
type MomentumOption func(*Momentum)

// WithMomentumWeightDecay устанавливает коэффициент L2 регуляризации
// (weight decay): эффективный градиент становится grad + decay*weight.
func WithMomentumWeightDecay(decay float64) MomentumOption {
	return func(m *Momentum) {
		m.weightDecay = decay
	}
}

// Momentum - оптимизатор с импульсом (Momentum).
// Ускоряет SGD в релевантном направлении и подавляет осцилляции.
type Momentum struct {
	LearningRate float64                   // Скорость обучения (learning rate)
	Mu           float64                   // Коэффициент инерции (momentum coefficient)
	weightDecay  float64                   // Коэффициент L2 регуляризации
	velocity     map[*graph.Node][]float64 // Скорость (импульс) для каждого параметра
}

// NewMomentum создает новый экземпляр оптимизатора Momentum.
func NewMomentum(lr, mu float64, opts ...MomentumOption) *Momentum {
	m := &Momentum{
		LearningRate: lr,
		Mu:           mu,
		velocity:     make(map[*graph.Node][]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Step обновляет параметры методом Momentum.
// Формула: v_t = mu * v_{t-1} + lr * grad
//
//	param -= v_t
func (m *Momentum) Step(params []*graph.Node) {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}

		// Инициализируем velocity для этого параметра, если его еще нет
		if _, exists := m.velocity[p]; !exists {
			m.velocity[p] = make([]float64, len(p.Value.Data))
		}

		v := m.velocity[p]

		// Обновляем velocity и параметры
		for i := range p.Value.Data {
			gradWithDecay := p.Grad.Data[i] + m.weightDecay*p.Value.Data[i]
			// v_t = mu * v_{t-1} + lr * grad
			v[i] = m.Mu*v[i] + m.LearningRate*gradWithDecay
			// param -= v_t
			p.Value.Data[i] -= v[i]
		}
	}
}

// SetLearningRate updates the learning rate used by subsequent Step calls.
func (m *Momentum) SetLearningRate(lr float64) {
	m.LearningRate = lr
}

// ZeroGrad обнуляет градиенты всех параметров
func (m *Momentum) ZeroGrad(params []*graph.Node) {
	for _, p := range params {
		if p.Grad != nil {
			for i := range p.Grad.Data {
				p.Grad.Data[i] = 0.0
			}
		}
	}
}

// CurrentLearningRate reports the optimizer's current learning rate.
func (m *Momentum) CurrentLearningRate() float64 {
	return m.LearningRate
}
