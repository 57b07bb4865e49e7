package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/desklink/settings"
)

// HistoryLimit is the number of runs kept in the history.
const HistoryLimit = 32

// RunStatus records how one update run ended.
type RunStatus struct {
	StartTime     string `json:"startTime"`
	FromVersion   string `json:"fromVersion"`
	ToVersion     string `json:"toVersion"`
	UpdateFile    string `json:"updateFile,omitempty"`
	FinishedState State  `json:"finishedState"`
	FinishedError Code   `json:"finishedError"`
	Message       string `json:"message,omitempty"`
}

// Succeeded reports whether the run reached ReadyForReset without error.
func (r RunStatus) Succeeded() bool {
	return r.FinishedError == NoError && r.FinishedState == StateReadyForReset
}

// Started parses StartTime.
func (r RunStatus) Started() (time.Time, error) {
	return time.Parse(time.RFC3339, r.StartTime)
}

// LoadHistory reads the run history from store. A missing key is an
// empty history.
func LoadHistory(ctx context.Context, store settings.Store) ([]RunStatus, error) {
	raw, err := store.Get(ctx, settings.KeyUpdateHistory)
	if errors.Is(err, settings.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read update history: %w", err)
	}
	var runs []RunStatus
	if err := json.Unmarshal([]byte(raw), &runs); err != nil {
		return nil, fmt.Errorf("decode update history: %w", err)
	}
	return runs, nil
}

// AppendHistory adds run to the history in store. A run with the same
// start time replaces the earlier entry. Only the newest HistoryLimit
// runs are kept.
func AppendHistory(ctx context.Context, store settings.Store, run RunStatus) error {
	runs, err := LoadHistory(ctx, store)
	if err != nil {
		return err
	}
	out := runs[:0]
	for _, r := range runs {
		if r.StartTime != run.StartTime {
			out = append(out, r)
		}
	}
	out = append(out, run)
	if len(out) > HistoryLimit {
		out = out[len(out)-HistoryLimit:]
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode update history: %w", err)
	}
	if err := store.Set(ctx, settings.KeyUpdateHistory, string(data)); err != nil {
		return fmt.Errorf("write update history: %w", err)
	}
	return nil
}
