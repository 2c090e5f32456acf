package engine

import (
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
)

// Evaluation records one policy run against one transaction.
type Evaluation struct {
	TxHash    [32]byte
	Policy    ledger.PolicyID
	Mode      policy.Mode
	Verdict   policy.Verdict
	MintDelta int64
}

// Applied describes the ledger effects of one applied transaction.
type Applied struct {
	TxHash   [32]byte
	Consumed []ledger.OutputRef
	// Produced pairs each created output with its new reference.
	Produced []ledger.Input
}

// Events receives notifications as transactions move through the engine.
// Implementations must not block; the engine calls them inline.
type Events interface {
	PublishEvaluation(ev Evaluation)
	PublishApplied(ap Applied)
}

// Recorder persists evaluation records for later inspection.
type Recorder interface {
	RecordEvaluation(ev Evaluation)
}

// FanOut forwards every notification to each sink in order. Nil sinks
// are dropped.
func FanOut(sinks ...Events) Events {
	kept := make(fanOut, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return kept
}

type fanOut []Events

func (f fanOut) PublishEvaluation(ev Evaluation) {
	for _, s := range f {
		s.PublishEvaluation(ev)
	}
}

func (f fanOut) PublishApplied(ap Applied) {
	for _, s := range f {
		s.PublishApplied(ap)
	}
}

// NoOpEvents discards all notifications.
type NoOpEvents struct{}

func (NoOpEvents) PublishEvaluation(Evaluation) {}
func (NoOpEvents) PublishApplied(Applied)       {}

// NoOpRecorder discards all evaluation records.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordEvaluation(Evaluation) {}

var (
	_ Events   = NoOpEvents{}
	_ Events   = fanOut(nil)
	_ Recorder = NoOpRecorder{}
)
