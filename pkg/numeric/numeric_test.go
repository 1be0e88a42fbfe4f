package numeric_test

import (
	"math"
	"testing"

	"github.com/plandes/dltools/pkg/numeric"
)

func TestParseReduction(t *testing.T) {
	for _, s := range []string{"argmax", "softmax", "none"} {
		r, err := numeric.ParseReduction(s)
		if err != nil {
			t.Fatal(err)
		}
		if string(r) != s {
			t.Fatalf("ParseReduction(%q) = %q", s, r)
		}
	}
	if _, err := numeric.ParseReduction("mean"); err == nil {
		t.Fatal("expected a Config error for an unknown reduction")
	}
}

// argmax must return the index of the row maximum for every row.
func TestReduceArgmax(t *testing.T) {
	data := []float64{
		0.1, 0.9, 0.0,
		2.0, -1.0, 1.5,
		-3.0, -2.0, -1.0,
	}
	got := numeric.Reduce(numeric.ReductionArgmax, data, 3, 3)
	want := []float64{1, 0, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argmax row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReduceSoftmaxRowsSumToOne(t *testing.T) {
	data := []float64{1, 2, 3, 1000, 1001, 1002}
	got := numeric.Reduce(numeric.ReductionSoftmax, data, 2, 3)
	for r := 0; r < 2; r++ {
		var sum float64
		for c := 0; c < 3; c++ {
			v := got[r*3+c]
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("softmax[%d,%d] = %v out of [0,1]", r, c, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("softmax row %d sums to %v, want 1", r, sum)
		}
	}
	// the large-magnitude second row exercises the LogSumExp
	// stabilization: a naive exp would overflow to +Inf.
	if got[3] >= got[4] || got[4] >= got[5] {
		t.Fatal("softmax must preserve the row's ordering")
	}
}

func TestReduceNoneIsIdentityCopy(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	got := numeric.Reduce(numeric.ReductionNone, data, 2, 2)
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("none reduction altered element %d", i)
		}
	}
	got[0] = 99
	if data[0] == 99 {
		t.Fatal("none reduction must copy, not alias, the input")
	}
}
