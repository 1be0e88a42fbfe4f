package optimizers_test

import (
	"math"
	"testing"

	"github.com/plandes/dltools/pkg/optimizers"
)

// TestReduceLROnPlateau проверяет уменьшение LR после patience эпох без улучшения
func TestReduceLROnPlateau(t *testing.T) {
	initialLR := 0.1
	factor := 0.5
	patience := 2

	scheduler := optimizers.NewReduceLROnPlateau(initialLR, factor, patience, 1e-6)

	// Эпоха 1: первое наблюдение устанавливает baseline, LR не меняется
	scheduler.Observe(1.0)
	lr := scheduler.Step()
	if math.Abs(lr-initialLR) > 1e-10 {
		t.Fatalf("plateau epoch 1: expected %v, got %v", initialLR, lr)
	}

	// Эпоха 2: улучшение, LR не меняется
	scheduler.Observe(0.8)
	lr = scheduler.Step()
	if math.Abs(lr-initialLR) > 1e-10 {
		t.Fatalf("plateau epoch 2: expected %v, got %v", initialLR, lr)
	}

	// Эпохи 3-4: без улучшения, после patience=2 эпох LR уменьшается
	scheduler.Observe(0.9)
	lr = scheduler.Step()
	if math.Abs(lr-initialLR) > 1e-10 {
		t.Fatalf("plateau epoch 3: expected %v, got %v", initialLR, lr)
	}
	scheduler.Observe(0.85)
	lr = scheduler.Step()
	expected := initialLR * factor
	if math.Abs(lr-expected) > 1e-10 {
		t.Fatalf("plateau epoch 4: expected %v, got %v", expected, lr)
	}
}

// TestReduceLROnPlateauMinLR проверяет нижнюю границу Learning Rate
func TestReduceLROnPlateauMinLR(t *testing.T) {
	minLR := 0.01
	scheduler := optimizers.NewReduceLROnPlateau(0.02, 0.1, 1, minLR)

	scheduler.Observe(1.0)
	scheduler.Step()
	// Две эпохи без улучшения подряд: 0.02 * 0.1 = 0.002 < minLR
	scheduler.Observe(1.0)
	scheduler.Step()
	scheduler.Observe(1.0)
	lr := scheduler.Step()
	if math.Abs(lr-minLR) > 1e-10 {
		t.Fatalf("plateau minLR: expected %v, got %v", minLR, lr)
	}
}

// TestReduceLROnPlateauWithoutObserve проверяет, что без Observe LR не меняется
func TestReduceLROnPlateauWithoutObserve(t *testing.T) {
	scheduler := optimizers.NewReduceLROnPlateau(0.1, 0.5, 0, 1e-6)
	for i := 0; i < 5; i++ {
		if lr := scheduler.Step(); math.Abs(lr-0.1) > 1e-10 {
			t.Fatalf("plateau without observe: expected 0.1, got %v", lr)
		}
	}
}
