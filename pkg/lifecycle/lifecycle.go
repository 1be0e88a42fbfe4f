// Package lifecycle implements a cooperative, file-polling early-stop
// and epoch-update protocol: an external process communicates with a
// running Executor purely by writing (or creating) a JSON file at a
// well-known path, which this package polls and consumes.
package lifecycle

import (
	"encoding/json"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/plandes/dltools/pkg/progress"
)

// UpdateAction mirrors the three actions the Python UpdateAction enum
// supports.
type UpdateAction int

const (
	ActionIterateEpoch UpdateAction = iota
	ActionSetEpoch
	ActionStop
)

// Status is the result of one poll: the action taken and the epoch the
// monitor now considers current.
type Status struct {
	Action UpdateAction
	Epoch  int
}

// Monitor polls UpdatePath for a status file on each GetStatus call,
// advancing or overriding the current epoch count and unlinking the file
// after every read (so a single write is consumed exactly once).
type Monitor struct {
	UpdatePath string

	currentEpoch int
	logger       *zap.Logger
	broadcaster  *progress.Broadcaster
}

func New(updatePath string, logger *zap.Logger, broadcaster *progress.Broadcaster) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{UpdatePath: updatePath, logger: logger, broadcaster: broadcaster}
}

// Reset removes any stale update file left from a prior run and zeroes
// the epoch counter.
func (m *Monitor) Reset() {
	_ = os.Remove(m.UpdatePath)
	m.currentEpoch = 0
}

type statusFile struct {
	Epoch *int `json:"epoch"`
}

// readStatus reads and unlinks the update file. Absence of the file
// yields ActionIterateEpoch (the common case: no intervention). A
// well-formed file with an integer `epoch` key yields ActionSetEpoch;
// any other present file — malformed JSON, or well-formed but missing
// `epoch` (the shape Stop writes) — yields ActionStop.
func (m *Monitor) readStatus() Status {
	data, err := os.ReadFile(m.UpdatePath)
	defer os.Remove(m.UpdatePath)
	if err != nil {
		return Status{Action: ActionIterateEpoch}
	}

	var sf statusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		m.logger.Warn("malformed lifecycle update file, stopping", zap.Error(err))
		return Status{Action: ActionStop}
	}
	if sf.Epoch != nil {
		return Status{Action: ActionSetEpoch, Epoch: *sf.Epoch}
	}
	return Status{Action: ActionStop}
}

// GetStatus polls for an update, applies it to the current epoch count,
// and returns the resulting epoch. On ActionStop the returned epoch is
// math.MaxInt32, signaling the Executor's training loop to end
// immediately regardless of its configured epoch cap.
func (m *Monitor) GetStatus() Status {
	st := m.readStatus()
	switch st.Action {
	case ActionStop:
		m.currentEpoch = math.MaxInt32
		m.logger.Info("lifecycle stop requested")
		m.broadcast("stop", 0)
	case ActionSetEpoch:
		m.currentEpoch = st.Epoch
		m.logger.Info("lifecycle epoch override", zap.Int("epoch", st.Epoch))
		m.broadcast("set_epoch", st.Epoch)
	case ActionIterateEpoch:
		m.currentEpoch++
		m.broadcast("iterate_epoch", m.currentEpoch)
	}
	return Status{Action: st.Action, Epoch: m.currentEpoch}
}

func (m *Monitor) broadcast(event string, epoch int) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Publish(progress.Event{Kind: event, Epoch: epoch})
}

// Stop creates the update file with a STOP-equivalent payload if it does
// not already exist, returning true if this call created it (i.e. no
// other writer raced it).
func (m *Monitor) Stop() (bool, error) {
	if _, err := os.Stat(m.UpdatePath); err == nil {
		return false, nil
	}
	data, err := json.Marshal(struct{}{})
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(m.UpdatePath, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentEpoch reports the monitor's last-computed epoch without
// polling.
func (m *Monitor) CurrentEpoch() int {
	return m.currentEpoch
}
