package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is returned when a stage status change would move backwards or skip a state.
var ErrInvalidTransition = errors.New("invalid stage transition")

// Stage identifies one step of the repository pipeline.
type Stage string

const (
	// StageClone fetches the repository into the target directory.
	StageClone Stage = "CLONE"
	// StageClassify runs the route extraction and file classification program.
	StageClassify Stage = "CLASSIFY"
	// StageDocProject generates project level documentation.
	StageDocProject Stage = "DOC_PROJECT"
	// StageDocUAT generates user acceptance test documentation.
	StageDocUAT Stage = "DOC_UAT"
	// StageDocAPI generates API documentation. Its failure never halts a job.
	StageDocAPI Stage = "DOC_API"
	// StageArchiveSend archives documentation and delivers the package.
	StageArchiveSend Stage = "ARCHIVE_SEND"
	// StageDelete forcefully removes the working tree.
	StageDelete Stage = "DELETE"
)

var stageOrder = []Stage{
	StageClone,
	StageClassify,
	StageDocProject,
	StageDocUAT,
	StageDocAPI,
	StageArchiveSend,
	StageDelete,
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Valid returns true if the stage is part of the pipeline.
func (s Stage) Valid() bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// ParseStage resolves a stage name case-insensitively.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}
	return s, nil
}

// StageKind describes how a stage failure affects the rest of the job.
type StageKind string

const (
	// StageKindCritical halts the job on failure.
	StageKindCritical StageKind = "critical"
	// StageKindNonCritical downgrades a failure to skipped.
	StageKindNonCritical StageKind = "noncritical"
	// StageKindGated runs only when the job has a delivery endpoint.
	StageKindGated StageKind = "gated"
)

// Kind returns the failure semantics of the stage.
func (s Stage) Kind() StageKind {
	switch s {
	case StageDocAPI:
		return StageKindNonCritical
	case StageArchiveSend:
		return StageKindGated
	default:
		return StageKindCritical
	}
}

// StageStatus represents the lifecycle position of a single stage.
type StageStatus string

const (
	// StageStatusPending indicates the stage has not started.
	StageStatusPending StageStatus = "pending"
	// StageStatusRunning indicates the executor is in progress.
	StageStatusRunning StageStatus = "running"
	// StageStatusCompleted indicates the executor succeeded.
	StageStatusCompleted StageStatus = "completed"
	// StageStatusFailed indicates the executor failed and the job halted.
	StageStatusFailed StageStatus = "failed"
	// StageStatusSkipped indicates the stage was bypassed or its failure was tolerated.
	StageStatusSkipped StageStatus = "skipped"
)

// Valid returns true if the StageStatus is valid.
func (s StageStatus) Valid() bool {
	switch s {
	case StageStatusPending, StageStatusRunning, StageStatusCompleted, StageStatusFailed, StageStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s StageStatus) Terminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed || s == StageStatusSkipped
}

// CanTransition reports whether moving from s to next is a forward step.
func (s StageStatus) CanTransition(next StageStatus) bool {
	switch s {
	case StageStatusPending:
		return next == StageStatusRunning || next == StageStatusSkipped
	case StageStatusRunning:
		return next == StageStatusCompleted || next == StageStatusFailed || next == StageStatusSkipped
	default:
		return false
	}
}

// StageOutcome is everything the state machine learns from an executor.
type StageOutcome struct {
	Success bool
	Output  string
	Err     error
}

// Succeeded builds a successful outcome.
func Succeeded(output string) StageOutcome {
	return StageOutcome{Success: true, Output: output}
}

// Failed builds a failed outcome.
func Failed(err error, output string) StageOutcome {
	if err == nil {
		err = errors.New("stage failed")
	}
	return StageOutcome{Success: false, Output: output, Err: err}
}
