package job

import "github.com/target/repodoc/internal/domain/model"

// DecisionSource identifies how a stage status was resolved.
type DecisionSource string

const (
	// DecisionSourceSucceeded indicates the executor reported success.
	DecisionSourceSucceeded DecisionSource = "succeeded"
	// DecisionSourceTolerated indicates a non-critical failure was downgraded.
	DecisionSourceTolerated DecisionSource = "tolerated"
	// DecisionSourceFailed indicates a failure that halts the job.
	DecisionSourceFailed DecisionSource = "failed"
	// DecisionSourceGated indicates the stage was bypassed because its gate is closed.
	DecisionSourceGated DecisionSource = "gated"
)

// StageDecision captures the outcome of resolving one stage.
type StageDecision struct {
	Status model.StageStatus
	Source DecisionSource
	Halt   bool
}

// Tolerated reports whether a failure was downgraded to skipped.
func (d StageDecision) Tolerated() bool {
	return d.Source == DecisionSourceTolerated
}

// StagePolicy maps executor outcomes onto stage statuses.
type StagePolicy struct{}

// Gate decides whether stage s should run at all. A closed gate yields a
// skipped decision that never halts the job.
func (StagePolicy) Gate(s model.Stage, hasEndpoint bool) (StageDecision, bool) {
	if s.Kind() == model.StageKindGated && !hasEndpoint {
		return StageDecision{Status: model.StageStatusSkipped, Source: DecisionSourceGated}, false
	}
	return StageDecision{}, true
}

// Resolve converts an executor outcome into the terminal status of stage s.
func (StagePolicy) Resolve(s model.Stage, outcome model.StageOutcome) StageDecision {
	if outcome.Success {
		return StageDecision{Status: model.StageStatusCompleted, Source: DecisionSourceSucceeded}
	}
	if s.Kind() == model.StageKindNonCritical {
		return StageDecision{Status: model.StageStatusSkipped, Source: DecisionSourceTolerated}
	}
	return StageDecision{Status: model.StageStatusFailed, Source: DecisionSourceFailed, Halt: true}
}

// Succeeded reports the overall outcome: every critical stage completed and none failed.
func (StagePolicy) Succeeded(stages map[model.Stage]model.StageRecord) bool {
	for _, s := range model.Stages() {
		rec := stages[s]
		if rec.Status == model.StageStatusFailed {
			return false
		}
		if s.Kind() == model.StageKindCritical && rec.Status != model.StageStatusCompleted {
			return false
		}
	}
	return true
}
