package tensor

import "math/rand"

// Zeros создаёт тензор, заполненный нулями, с указанной формой.
func Zeros(shape ...int) *Tensor {
	size := calculateSize(shape)
	return &Tensor{
		Data:    make([]float64, size),
		Shape:   shape,
		Strides: calculateStrides(shape),
		DType:   GetDefaultDType(),
	}
}

// Ones создаёт тензор, заполненный единицами, с указанной формой.
func Ones(shape ...int) *Tensor {
	data := make([]float64, calculateSize(shape))
	for i := range data {
		data[i] = 1.0
	}
	return &Tensor{
		Data:    data,
		Shape:   shape,
		Strides: calculateStrides(shape),
		DType:   GetDefaultDType(),
	}
}

// Randn создаёт тензор со значениями из нормального распределения N(0, 1).
// seed фиксирует генератор для воспроизводимости.
func Randn(shape []int, seed int64) *Tensor {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, calculateSize(shape))
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return &Tensor{
		Data:    data,
		Shape:   shape,
		Strides: calculateStrides(shape),
		DType:   GetDefaultDType(),
	}
}

func calculateSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}
