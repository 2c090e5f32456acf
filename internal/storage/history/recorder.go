package history

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/logging"
)

const saveTimeout = 5 * time.Second

// Recorder adapts a Store to the engine's evaluation hook. Save failures
// are logged, never propagated: history is an observer of the engine, not
// a participant in its decisions.
type Recorder struct {
	store  Store
	logger logging.Logger
}

var _ engine.Recorder = (*Recorder)(nil)

// NewRecorder wraps store. A nil logger falls back to the default logger.
func NewRecorder(store Store, logger logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.New("history")
	}
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) RecordEvaluation(ev engine.Evaluation) {
	rec := Record{
		ID:        uuid.NewString(),
		TxHash:    hex.EncodeToString(ev.TxHash[:]),
		PolicyID:  ev.Policy.String(),
		Mode:      ev.Mode.String(),
		Code:      ev.Verdict.Code.String(),
		Detail:    ev.Verdict.Detail,
		MintDelta: ev.MintDelta,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.SaveEvaluation(ctx, rec); err != nil {
		r.logger.Error("failed to record evaluation for tx %s: %v", rec.TxHash, err)
	}
}
