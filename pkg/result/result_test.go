package result_test

import (
	"bytes"
	"encoding/gob"
	"testing"
	"time"

	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/result"
)

func TestEpochResultAppendLengthsStayEqual(t *testing.T) {
	e := result.NewEpochResult(0, result.Train)
	e.Append(1.0, 2, "b0", result.Outcome{Predictions: []float64{0, 1}, Labels: []float64{0, 1}})
	e.Append(2.0, 3, "b1", result.Outcome{Predictions: []float64{1, 1, 0}, Labels: []float64{1, 0, 0}})

	if n := e.NumBatches(); n != 2 {
		t.Fatalf("NumBatches = %d, want 2", n)
	}
	if len(e.BatchIDs()) != e.NumBatches() {
		t.Fatalf("batch id count diverges from batch count")
	}
	if e.TotalDataPoints() != 5 {
		t.Fatalf("TotalDataPoints = %d, want 5", e.TotalDataPoints())
	}
}

func TestEpochResultAveLossOnEmptyRaisesNoResults(t *testing.T) {
	e := result.NewEpochResult(0, result.Train)
	if _, err := e.AveLoss(); !isNoResults(err) {
		t.Fatalf("expected NoResults, got %v", err)
	}
	if _, err := e.Accuracy(); !isNoResults(err) {
		t.Fatalf("expected NoResults, got %v", err)
	}
	if _, err := e.Predictions(); !isNoResults(err) {
		t.Fatalf("expected NoResults, got %v", err)
	}
}

func TestEpochResultAveLoss(t *testing.T) {
	e := result.NewEpochResult(0, result.Train)
	e.Append(4.0, 2, "b0", result.Outcome{})
	e.Append(6.0, 3, "b1", result.Outcome{})
	avg, err := e.AveLoss()
	if err != nil {
		t.Fatal(err)
	}
	if avg != 5.0 {
		t.Fatalf("AveLoss = %v, want 5.0 (Σloss/#batches)", avg)
	}
}

func TestEpochResultAccuracy(t *testing.T) {
	e := result.NewEpochResult(0, result.Validation)
	e.Append(1.0, 4, "b0", result.Outcome{
		Predictions: []float64{0, 1, 1, 0},
		Labels:      []float64{0, 1, 0, 0},
	})
	acc, err := e.Accuracy()
	if err != nil {
		t.Fatal(err)
	}
	if acc != 0.75 {
		t.Fatalf("Accuracy = %v, want 0.75", acc)
	}
}

func TestEpochResultMicroMacro(t *testing.T) {
	e := result.NewEpochResult(0, result.Test)
	// Two classes (0, 1); predictions mostly right with two misses (indices 2 and 5).
	e.Append(1.0, 6, "b0", result.Outcome{
		Predictions: []float64{0, 1, 1, 0, 1, 0},
		Labels:      []float64{0, 1, 0, 0, 1, 1},
	})
	mp, mr, mf1, err := e.Micro()
	if err != nil {
		t.Fatal(err)
	}
	if mp <= 0 || mr <= 0 || mf1 <= 0 {
		t.Fatalf("expected positive micro metrics, got p=%v r=%v f1=%v", mp, mr, mf1)
	}
	Mp, Mr, Mf1, err := e.Macro()
	if err != nil {
		t.Fatal(err)
	}
	if Mp <= 0 || Mr <= 0 || Mf1 <= 0 {
		t.Fatalf("expected positive macro metrics, got p=%v r=%v f1=%v", Mp, Mr, Mf1)
	}
}

func TestDatasetResultStartEndSetOnce(t *testing.T) {
	d := result.NewDatasetResult(result.Train)
	base := time.Unix(1000, 0)
	t0 := base
	t1 := base.Add(time.Second)
	t2 := base.Add(3 * time.Second)

	d.Start(t0)
	d.Start(t1) // no-op, already started
	d.End(t2)
	d.End(base.Add(99 * time.Second)) // no-op, already ended

	if got := d.Duration(); got != t2.Sub(t0) {
		t.Fatalf("Duration = %v, want %v (Start must stick to first call)", got, t2.Sub(t0))
	}
}

func TestDatasetResultAveLossWeightedAcrossEpochs(t *testing.T) {
	d := result.NewDatasetResult(result.Train)

	e0 := result.NewEpochResult(0, result.Train)
	e0.Append(10.0, 2, "b0", result.Outcome{}) // contributes 10 loss / 2 points
	d.AppendEpoch(e0)

	e1 := result.NewEpochResult(1, result.Train)
	e1.Append(6.0, 3, "b1", result.Outcome{}) // contributes 6 loss / 3 points
	d.AppendEpoch(e1)

	// (10+6) / (2+3) = 3.2
	if got := d.AveLoss(); got != 3.2 {
		t.Fatalf("AveLoss = %v, want 3.2", got)
	}
}

func TestDatasetResultAveLossEmptyIsZeroNotError(t *testing.T) {
	d := result.NewDatasetResult(result.Validation)
	if got := d.AveLoss(); got != 0 {
		t.Fatalf("AveLoss on empty DatasetResult = %v, want explicit 0", got)
	}
}

func TestDatasetResultConvergenceAndMinLoss(t *testing.T) {
	d := result.NewDatasetResult(result.Validation)

	e0 := result.NewEpochResult(0, result.Validation)
	e0.Append(9.0, 1, "b0", result.Outcome{})
	d.AppendEpoch(e0)

	e1 := result.NewEpochResult(1, result.Validation)
	e1.Append(2.0, 1, "b1", result.Outcome{}) // minimum
	d.AppendEpoch(e1)

	e2 := result.NewEpochResult(2, result.Validation)
	e2.Append(5.0, 1, "b2", result.Outcome{})
	d.AppendEpoch(e2)

	conv, err := d.Convergence()
	if err != nil {
		t.Fatal(err)
	}
	if conv != 1 {
		t.Fatalf("Convergence = %d, want 1 (epoch with min loss)", conv)
	}

	minLoss, err := d.MinLoss()
	if err != nil {
		t.Fatal(err)
	}
	if minLoss != 2.0 {
		t.Fatalf("MinLoss = %v, want 2.0", minLoss)
	}
}

func TestDatasetResultConvergenceOnEmptyRaisesNoResults(t *testing.T) {
	d := result.NewDatasetResult(result.Test)
	if _, err := d.Convergence(); !isNoResults(err) {
		t.Fatalf("expected NoResults, got %v", err)
	}
}

func TestRunCounterMonotonic(t *testing.T) {
	rc := result.NewRunCounter()
	if rc.Next() != 1 || rc.Next() != 2 || rc.Next() != 3 {
		t.Fatal("RunCounter.Next() must increment monotonically from 1")
	}
	rc.ResetRuns()
	if rc.Next() != 1 {
		t.Fatal("ResetRuns must zero the counter for test isolation")
	}
}

func TestModelResultRunIndexAndLastTestDatasetResult(t *testing.T) {
	rc := result.NewRunCounter()
	m1 := result.NewModelResult(rc, "run-one", "first", nil, nil)
	m2 := result.NewModelResult(rc, "run-two", "second", nil, nil)
	if m2.RunIndex != m1.RunIndex+1 {
		t.Fatalf("run index did not increment across constructions: %d -> %d", m1.RunIndex, m2.RunIndex)
	}

	if _, err := m1.LastTestDatasetResult(); !isNoResults(err) {
		t.Fatalf("expected NoResults on a fresh ModelResult, got %v", err)
	}

	m1.ValidationResult.AppendEpoch(result.NewEpochResult(0, result.Validation))
	dr, err := m1.LastTestDatasetResult()
	if err != nil {
		t.Fatal(err)
	}
	if dr.Split != result.Validation {
		t.Fatalf("expected validation preferred over empty test, got split %v", dr.Split)
	}

	m1.TestResult.AppendEpoch(result.NewEpochResult(0, result.Test))
	dr, err = m1.LastTestDatasetResult()
	if err != nil {
		t.Fatal(err)
	}
	if dr.Split != result.Test {
		t.Fatalf("expected test preferred once populated, got split %v", dr.Split)
	}
}

// settings maps are frozen at construction: mutating the caller's map
// afterwards must not reach the recorded run.
func TestModelResultFreezesSettingsAtCreation(t *testing.T) {
	rc := result.NewRunCounter()
	ms := map[string]string{"epochs": "5"}
	ns := map[string]string{"optimizer": "adam"}
	mr := result.NewModelResult(rc, "run", "desc", ms, ns)

	ms["epochs"] = "999"
	delete(ns, "optimizer")

	if mr.ModelSettings["epochs"] != "5" {
		t.Fatalf("ModelSettings[epochs] = %q, want the frozen %q", mr.ModelSettings["epochs"], "5")
	}
	if mr.NetworkSettings["optimizer"] != "adam" {
		t.Fatalf("NetworkSettings[optimizer] = %q, want the frozen %q", mr.NetworkSettings["optimizer"], "adam")
	}
}

// TestModelResultGobRoundTripPreservesEpochs guards against EpochResult's
// and DatasetResult's private fields silently vanishing through gob: both
// implement GobEncode/GobDecode precisely so a checkpoint's .result file
// keeps the epoch history, not just the top-level run metadata.
func TestModelResultGobRoundTripPreservesEpochs(t *testing.T) {
	rc := result.NewRunCounter()
	mr := result.NewModelResult(rc, "run", "desc", nil, nil)
	e := result.NewEpochResult(0, result.Train)
	e.Append(4.0, 2, "b0", result.Outcome{Predictions: []float64{1, 0}, Labels: []float64{1, 1}})
	mr.TrainResult.AppendEpoch(e)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(mr); err != nil {
		t.Fatal(err)
	}
	var loaded result.ModelResult
	if err := gob.NewDecoder(&buf).Decode(&loaded); err != nil {
		t.Fatal(err)
	}

	if loaded.TrainResult.IsEmpty() {
		t.Fatal("gob round trip lost the train DatasetResult's epochs")
	}
	avg := loaded.TrainResult.AveLoss()
	if avg != 2.0 {
		t.Fatalf("loaded AveLoss = %v, want 2.0 (4.0/2 data points)", avg)
	}
}

func isNoResults(err error) bool {
	e, ok := err.(*dlerrors.Error)
	return ok && e.Kind == dlerrors.KindNoResults
}
