package layers

import (
	"math"

	"github.com/plandes/dltools/pkg/tensor"
)

// BatchNorm нормализует входящий батч (вектор), путем изменения общего среднего и дисперсии.
// После нормализации выходные данные будут иметь среднее 0 и дисперсию 1.
// Параметры gamma и betta позволяют восстановить любую нужную дисперсию и среднее, если это полезно для модели.
// gamma масштабирует батч, то есть умножает все нормализованные значения на свое значени
// betta смещает значения нормализованные значения вверх или вниз.
// Значений по умолчанию нет; gamma = 1, betta = 0 оставляют нормализованный батч без изменений.
func BatchNormVector(batch tensor.Vector, gamma float64, betta float64) []float64 {
	m := float64(len(batch))
	var sum float64
	for _, el := range batch {
		sum += el
	}

	avg := sum / m // Высчитываем среднее значение батча

	var dispersion float64 // Дисперсия значений
	for _, el := range batch {
		dispersion += math.Pow(el-avg, 2)
	}
	dispersion /= m

	normBatch := make([]float64, int64(m))
	for i := 0; i < int(m); i++ {
		normBatch[i] = gamma*(batch[i]-avg)/math.Sqrt(dispersion+1e-20) + betta
	}
	return normBatch
}
