package optimizers

import "github.com/plandes/dltools/pkg/tensor/graph"

// SGDOption - функциональная опция для настройки оптимизатора SGD, тот
// же паттерн, что и RMSPropOption.
type SGDOption func(*StochasticGradientDescent)

// WithSGDWeightDecay устанавливает коэффициент L2 регуляризации (weight
// decay) для SGD: эффективный градиент становится grad + decay*weight.
func WithSGDWeightDecay(decay float64) SGDOption {
	return func(s *StochasticGradientDescent) {
		s.weightDecay = decay
	}
}

// StochasticGradientDescent - простой оптимизатор Stochastic Gradient Descent.
// Обновляет параметры модели, вычитая градиент, умноженный на learning rate.
type StochasticGradientDescent struct {
	LearningRate float64 // Скорость обучения
	weightDecay  float64 // Коэффициент L2 регуляризации
}

// NewSGD создает новый экземпляр SGD с заданным learning rate.
func NewSGD(lr float64, opts ...SGDOption) *StochasticGradientDescent {
	s := &StochasticGradientDescent{LearningRate: lr}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Step обновляет параметры методом SGD, умножая градиент на LearningRate: param.Value -= lr * param.Grad
func (s *StochasticGradientDescent) Step(params []*graph.Node) {
	for _, p := range params {
		if p.Grad == nil {
			continue // или паника, в зависимости от требований
		}
		// Проходимся по тензорам и умножаем на скорость обучения
		for i := range p.Value.Data { // если Tensor
			grad := p.Grad.Data[i] + s.weightDecay*p.Value.Data[i]
			p.Value.Data[i] -= s.LearningRate * grad
		}
	}
}

// SetLearningRate updates the learning rate used by subsequent Step calls.
func (s *StochasticGradientDescent) SetLearningRate(lr float64) {
	s.LearningRate = lr
}

// ZeroGrad обнуляет градиенты всех параметров
func (s *StochasticGradientDescent) ZeroGrad(params []*graph.Node) {
	for _, p := range params {
		if p.Grad != nil {
			for i := range p.Grad.Data {
				p.Grad.Data[i] = 0.0
			}
		}
	}
}

// CurrentLearningRate reports the optimizer's current learning rate, for
// callers (e.g. checkpoint.Manager.SaveOptim) that need it without a
// type switch over every concrete optimizer.
func (s *StochasticGradientDescent) CurrentLearningRate() float64 {
	return s.LearningRate
}
