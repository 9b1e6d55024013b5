// Package errors defines the board domain error taxonomy. Storage-level
// constraint violations are translated into these at the repository boundary so
// raw driver detail never reaches API clients.
package errors

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

type Code string

const (
	// CodeDuplicateOrder is returned when a stage create/update would collide
	// with an existing stage's order in the same pipeline.
	CodeDuplicateOrder Code = "duplicate_order"
	// CodeInvalidStageReference is returned when a reorder request names a
	// stage that does not belong to the target pipeline.
	CodeInvalidStageReference Code = "invalid_stage_reference"
	// CodeStageNotEmpty is returned when a stage delete is blocked by deals
	// still referencing it.
	CodeStageNotEmpty Code = "stage_not_empty"
	// CodeStaleState is returned when a write no longer matches current
	// server state and the caller should re-fetch.
	CodeStaleState Code = "stale_state"
)

type BoardError struct {
	Code       Code
	Message    string
	PipelineID string
	StageID    string
	DealCount  int
}

func (e *BoardError) Error() string {
	return e.Message
}

func NewDuplicateOrder(pipelineID string, order int) *BoardError {
	return &BoardError{
		Code:       CodeDuplicateOrder,
		Message:    fmt.Sprintf("stage with order %d already exists in this pipeline", order),
		PipelineID: pipelineID,
	}
}

func NewInvalidStageReference(pipelineID, stageID string) *BoardError {
	return &BoardError{
		Code:       CodeInvalidStageReference,
		Message:    fmt.Sprintf("stage %s does not belong to pipeline %s", stageID, pipelineID),
		PipelineID: pipelineID,
		StageID:    stageID,
	}
}

func NewStageNotEmpty(stageID string, dealCount int) *BoardError {
	return &BoardError{
		Code:      CodeStageNotEmpty,
		Message:   fmt.Sprintf("cannot delete stage with %d deal(s), move deals to another stage first", dealCount),
		StageID:   stageID,
		DealCount: dealCount,
	}
}

func NewStaleState(message string) *BoardError {
	return &BoardError{
		Code:    CodeStaleState,
		Message: message,
	}
}

func IsBoardError(err error) bool {
	_, ok := err.(*BoardError)
	return ok
}

func AsBoardError(err error) (*BoardError, bool) {
	be, ok := err.(*BoardError)
	return be, ok
}

// IsCode reports whether err is a BoardError carrying the given code.
func IsCode(err error, code Code) bool {
	be, ok := err.(*BoardError)
	return ok && be.Code == code
}

func (e *BoardError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusBadRequest
	if e.Code == CodeStaleState {
		status = http.StatusConflict
	}

	herr := httperror.NewHTTPError(status, e.Message).AddMetaValue("code", string(e.Code))
	if e.PipelineID != "" {
		herr = herr.AddMetaValue("pipeline_id", e.PipelineID)
	}
	if e.StageID != "" {
		herr = herr.AddMetaValue("stage_id", e.StageID)
	}
	if e.Code == CodeStageNotEmpty {
		herr = herr.AddMetaValue("deal_count", e.DealCount)
	}
	return herr
}
