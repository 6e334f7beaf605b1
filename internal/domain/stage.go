package domain

import (
	"errors"
	"fmt"
)

// Stage names one step of a pipeline run.
type Stage string

const (
	StageRewriting   Stage = "rewriting"
	StageSearching   Stage = "searching"
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageCleaning    Stage = "cleaning"
	StageSplitting   Stage = "splitting"
	StageEmbedding   Stage = "embedding"
	StageWriting     Stage = "writing"
	StageRetrieving  Stage = "retrieving"
	StageGenerating  Stage = "generating"
	StageDone        Stage = "done"
)

// Stages lists the run stages in execution order.
var Stages = []Stage{
	StageRewriting,
	StageSearching,
	StageFetching,
	StageNormalizing,
	StageCleaning,
	StageSplitting,
	StageEmbedding,
	StageWriting,
	StageRetrieving,
	StageGenerating,
	StageDone,
}

// StageError records which stage terminated a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage recorded in err, or "".
func StageOf(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
