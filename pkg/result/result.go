// Package result implements the ResultContainer hierarchy: EpochResult,
// DatasetResult, and ModelResult, plus the derived metrics (accuracy,
// micro/macro F1, convergence) computed over them.
//
// EpochResult follows a mutex-guarded, append-only update pattern, with
// per-class precision/recall/F1 formulas generalized to an append-only,
// per-epoch container shape.
package result

import (
	"bytes"
	"encoding/gob"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plandes/dltools/pkg/dlerrors"
)

// Split tags one of the three dataset phases a DatasetResult belongs to.
type Split int

const (
	Train Split = iota
	Validation
	Test
)

func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Validation:
		return "validation"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Outcome is one batch's host-resident (prediction, label) pair, already
// decoded by the configured reduction. Labels may be nil for an
// unlabeled test batch.
type Outcome struct {
	Predictions []float64
	Labels      []float64
}

// EpochResult accumulates one epoch of one split. It is append-only: once
// a value has been appended it is never mutated, only read or discarded
// via Reset.
type EpochResult struct {
	mu sync.RWMutex

	Epoch int
	Split Split

	batchLosses []float64
	batchIDs    []string
	nDataPoints []int
	outcomes    []Outcome
}

func NewEpochResult(epoch int, split Split) *EpochResult {
	return &EpochResult{Epoch: epoch, Split: split}
}

// Append records one batch's contribution. loss is already multiplied by
// batchSize per the step contract.
func (e *EpochResult) Append(loss float64, batchSize int, batchID string, outcome Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchLosses = append(e.batchLosses, loss)
	e.batchIDs = append(e.batchIDs, batchID)
	e.nDataPoints = append(e.nDataPoints, batchSize)
	e.outcomes = append(e.outcomes, outcome)
}

// Reset discards all appended batches, returning the container to its
// freshly-constructed state.
func (e *EpochResult) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchLosses = nil
	e.batchIDs = nil
	e.nDataPoints = nil
	e.outcomes = nil
}

func (e *EpochResult) isEmpty() bool {
	return len(e.batchLosses) == 0
}

// epochResultGob is the exported shadow of EpochResult's private fields:
// gob only walks exported struct fields, so a bare EpochResult would
// silently encode as empty without this.
type epochResultGob struct {
	Epoch       int
	Split       Split
	BatchLosses []float64
	BatchIDs    []string
	NDataPoints []int
	Outcomes    []Outcome
}

func (e *EpochResult) GobEncode() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var buf bytes.Buffer
	shadow := epochResultGob{
		Epoch:       e.Epoch,
		Split:       e.Split,
		BatchLosses: e.batchLosses,
		BatchIDs:    e.batchIDs,
		NDataPoints: e.nDataPoints,
		Outcomes:    e.outcomes,
	}
	if err := gob.NewEncoder(&buf).Encode(shadow); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *EpochResult) GobDecode(data []byte) error {
	var shadow epochResultGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&shadow); err != nil {
		return err
	}
	e.Epoch = shadow.Epoch
	e.Split = shadow.Split
	e.batchLosses = shadow.BatchLosses
	e.batchIDs = shadow.BatchIDs
	e.nDataPoints = shadow.NDataPoints
	e.outcomes = shadow.Outcomes
	return nil
}

// NumBatches reports how many batches have been appended; it does not
// raise NoResults on empty, unlike the derived metrics below.
func (e *EpochResult) NumBatches() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.batchLosses)
}

func (e *EpochResult) BatchIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.batchIDs))
	copy(out, e.batchIDs)
	return out
}

// AveLoss is Σ loss-contributions / |batch-losses| — the number of
// batches, not the number of data points.
func (e *EpochResult) AveLoss() (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return 0, dlerrors.New(dlerrors.KindNoResults, "AveLoss on empty EpochResult")
	}
	var sum float64
	for _, l := range e.batchLosses {
		sum += l
	}
	return sum / float64(len(e.batchLosses)), nil
}

// TotalLoss and TotalDataPoints back DatasetResult.AveLoss's
// cross-epoch weighted average.
func (e *EpochResult) TotalLoss() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var sum float64
	for _, l := range e.batchLosses {
		sum += l
	}
	return sum
}

func (e *EpochResult) TotalDataPoints() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var sum int
	for _, n := range e.nDataPoints {
		sum += n
	}
	return sum
}

// concat flattens the stored outcomes into parallel prediction/label
// slices, in append order.
func (e *EpochResult) concat() ([]float64, []float64) {
	var preds, labels []float64
	for _, o := range e.outcomes {
		preds = append(preds, o.Predictions...)
		labels = append(labels, o.Labels...)
	}
	return preds, labels
}

func (e *EpochResult) Predictions() ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return nil, dlerrors.New(dlerrors.KindNoResults, "Predictions on empty EpochResult")
	}
	preds, _ := e.concat()
	return preds, nil
}

func (e *EpochResult) Labels() ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return nil, dlerrors.New(dlerrors.KindNoResults, "Labels on empty EpochResult")
	}
	_, labels := e.concat()
	return labels, nil
}

// Accuracy is the mean of elementwise equality between labels and
// predictions.
func (e *EpochResult) Accuracy() (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return 0, dlerrors.New(dlerrors.KindNoResults, "Accuracy on empty EpochResult")
	}
	preds, labels := e.concat()
	if len(preds) == 0 {
		return 0, nil
	}
	correct := 0
	for i := range preds {
		if preds[i] == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(preds)), nil
}

// ClassMetrics holds precision/recall/F1 for one label class.
type ClassMetrics struct {
	Label     float64
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Macro computes macro-averaged precision/recall/F1 over the concatenated
// label/prediction vectors: the unweighted mean across observed classes.
func (e *EpochResult) Macro() (precision, recall, f1 float64, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return 0, 0, 0, dlerrors.New(dlerrors.KindNoResults, "Macro on empty EpochResult")
	}
	preds, labels := e.concat()
	per := perClass(preds, labels)
	if len(per) == 0 {
		return 0, 0, 0, nil
	}
	for _, c := range per {
		precision += c.Precision
		recall += c.Recall
		f1 += c.F1
	}
	n := float64(len(per))
	return precision / n, recall / n, f1 / n, nil
}

// Micro computes micro-averaged precision/recall/F1: aggregate TP/FP/FN
// across all classes before forming the ratios.
func (e *EpochResult) Micro() (precision, recall, f1 float64, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.isEmpty() {
		return 0, 0, 0, dlerrors.New(dlerrors.KindNoResults, "Micro on empty EpochResult")
	}
	preds, labels := e.concat()
	var tp, fp, fn int
	classes := distinctLabels(labels)
	for _, c := range classes {
		for i := range preds {
			pIs := preds[i] == c
			lIs := labels[i] == c
			switch {
			case pIs && lIs:
				tp++
			case pIs && !lIs:
				fp++
			case !pIs && lIs:
				fn++
			}
		}
	}
	precision = safeDiv(float64(tp), float64(tp+fp))
	recall = safeDiv(float64(tp), float64(tp+fn))
	f1 = safeDiv(2*precision*recall, precision+recall)
	return precision, recall, f1, nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func distinctLabels(labels []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func perClass(preds, labels []float64) []ClassMetrics {
	classes := distinctLabels(labels)
	out := make([]ClassMetrics, 0, len(classes))
	for _, c := range classes {
		var tp, fp, fn, support int
		for i := range preds {
			pIs := preds[i] == c
			lIs := labels[i] == c
			if lIs {
				support++
			}
			switch {
			case pIs && lIs:
				tp++
			case pIs && !lIs:
				fp++
			case !pIs && lIs:
				fn++
			}
		}
		precision := safeDiv(float64(tp), float64(tp+fp))
		recall := safeDiv(float64(tp), float64(tp+fn))
		f1 := safeDiv(2*precision*recall, precision+recall)
		out = append(out, ClassMetrics{Label: c, Precision: precision, Recall: recall, F1: f1, Support: support})
	}
	return out
}

// DatasetResult is an ordered sequence of EpochResults for one split, plus
// start/end timestamps.
type DatasetResult struct {
	mu sync.RWMutex

	Split     Split
	epochs    []*EpochResult
	startedAt time.Time
	endedAt   time.Time
	started   bool
	ended     bool
}

func NewDatasetResult(split Split) *DatasetResult {
	return &DatasetResult{Split: split}
}

// datasetResultGob is the exported shadow of DatasetResult's private
// fields, for the same reason epochResultGob exists.
type datasetResultGob struct {
	Split     Split
	Epochs    []*EpochResult
	StartedAt time.Time
	EndedAt   time.Time
	Started   bool
	Ended     bool
}

func (d *DatasetResult) GobEncode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	shadow := datasetResultGob{
		Split:     d.Split,
		Epochs:    d.epochs,
		StartedAt: d.startedAt,
		EndedAt:   d.endedAt,
		Started:   d.started,
		Ended:     d.ended,
	}
	if err := gob.NewEncoder(&buf).Encode(shadow); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DatasetResult) GobDecode(data []byte) error {
	var shadow datasetResultGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&shadow); err != nil {
		return err
	}
	d.Split = shadow.Split
	d.epochs = shadow.Epochs
	d.startedAt = shadow.StartedAt
	d.endedAt = shadow.EndedAt
	d.started = shadow.Started
	d.ended = shadow.Ended
	return nil
}

// Start sets the start timestamp exactly once; subsequent calls are no-ops
// so restart-after-resume does not clobber the original start.
func (d *DatasetResult) Start(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.startedAt = now
	d.started = true
}

// End sets the end timestamp exactly once, after the last epoch has been
// appended.
func (d *DatasetResult) End(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ended {
		return
	}
	d.endedAt = now
	d.ended = true
}

func (d *DatasetResult) AppendEpoch(e *EpochResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epochs = append(d.epochs, e)
}

func (d *DatasetResult) Epochs() []*EpochResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*EpochResult, len(d.epochs))
	copy(out, d.epochs)
	return out
}

func (d *DatasetResult) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.epochs) == 0
}

func (d *DatasetResult) Duration() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started || !d.ended {
		return 0
	}
	return d.endedAt.Sub(d.startedAt)
}

// AveLoss is Σ(per-epoch Σloss) / Σ(per-epoch data-point count), 0 on
// empty — explicit, not NoResults.
func (d *DatasetResult) AveLoss() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var lossSum float64
	var pointSum int
	for _, e := range d.epochs {
		lossSum += e.TotalLoss()
		pointSum += e.TotalDataPoints()
	}
	if pointSum == 0 {
		return 0
	}
	return lossSum / float64(pointSum)
}

// Convergence returns the index of the minimum-loss epoch, using each
// epoch's own AveLoss as the comparison key.
func (d *DatasetResult) Convergence() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.epochs) == 0 {
		return 0, dlerrors.New(dlerrors.KindNoResults, "Convergence on empty DatasetResult")
	}
	best := 0
	bestLoss := math.Inf(1)
	for i, e := range d.epochs {
		l, err := e.AveLoss()
		if err != nil {
			continue
		}
		if l < bestLoss {
			bestLoss = l
			best = i
		}
	}
	return best, nil
}

// MinLoss returns the minimum per-epoch AveLoss.
func (d *DatasetResult) MinLoss() (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.epochs) == 0 {
		return 0, dlerrors.New(dlerrors.KindNoResults, "MinLoss on empty DatasetResult")
	}
	best := math.Inf(1)
	for _, e := range d.epochs {
		l, err := e.AveLoss()
		if err != nil {
			continue
		}
		if l < best {
			best = l
		}
	}
	return best, nil
}

// LastEpoch returns the most recently appended EpochResult, used as the
// basis for dataset-level accuracy/micro/macro.
func (d *DatasetResult) LastEpoch() (*EpochResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.epochs) == 0 {
		return nil, dlerrors.New(dlerrors.KindNoResults, "LastEpoch on empty DatasetResult")
	}
	return d.epochs[len(d.epochs)-1], nil
}

// RunCounter is a module-global-free run index service: construct one per
// process (or inject a shared instance) rather than relying on a package
// global, so tests can isolate run numbering.
type RunCounter struct {
	mu  sync.Mutex
	run int
}

func NewRunCounter() *RunCounter { return &RunCounter{} }

func (r *RunCounter) Next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run++
	return r.run
}

// ResetRuns zeroes the counter; intended for test isolation only.
func (r *RunCounter) ResetRuns() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = 0
}

// ModelResult is a named triple of DatasetResults plus run metadata, the
// top-level object dumped by ResultManager and saved by CheckpointManager.
type ModelResult struct {
	RunIndex    int
	RunID       uuid.UUID
	Name        string
	Description string

	ModelSettings   map[string]string
	NetworkSettings map[string]string

	TrainResult      *DatasetResult
	ValidationResult *DatasetResult
	TestResult       *DatasetResult

	CreatedAt time.Time
}

// NewModelResult constructs a fresh ModelResult, assigning the next run
// index from counter and a new RunID. The model and network settings are
// frozen at creation time: copied, never aliased, so later mutation of
// the caller's maps cannot alter a recorded run.
func NewModelResult(counter *RunCounter, name, description string, modelSettings, networkSettings map[string]string) *ModelResult {
	return &ModelResult{
		RunIndex:         counter.Next(),
		RunID:            uuid.New(),
		Name:             name,
		Description:      description,
		ModelSettings:    freezeSettings(modelSettings),
		NetworkSettings:  freezeSettings(networkSettings),
		TrainResult:      NewDatasetResult(Train),
		ValidationResult: NewDatasetResult(Validation),
		TestResult:       NewDatasetResult(Test),
		CreatedAt:        time.Now(),
	}
}

func freezeSettings(settings map[string]string) map[string]string {
	frozen := make(map[string]string, len(settings))
	for k, v := range settings {
		frozen[k] = v
	}
	return frozen
}

// LastTestDatasetResult prefers test, then validation, else NoResults.
func (m *ModelResult) LastTestDatasetResult() (*DatasetResult, error) {
	if m.TestResult != nil && !m.TestResult.IsEmpty() {
		return m.TestResult, nil
	}
	if m.ValidationResult != nil && !m.ValidationResult.IsEmpty() {
		return m.ValidationResult, nil
	}
	return nil, dlerrors.New(dlerrors.KindNoResults, "no test or validation results present")
}

func (m *ModelResult) DatasetResult(split Split) *DatasetResult {
	switch split {
	case Train:
		return m.TrainResult
	case Validation:
		return m.ValidationResult
	case Test:
		return m.TestResult
	default:
		return nil
	}
}
