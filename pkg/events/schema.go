package events

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/aster/pkg/models"
)

// Type identifies a board event
type Type string

const (
	// TypeDealCreated announces a new deal on the board
	TypeDealCreated Type = "deal.created"
	// TypeDealUpdated announces field changes on a deal that did not move it
	TypeDealUpdated Type = "deal.updated"
	// TypeDealDeleted announces a deal removed from the board
	TypeDealDeleted Type = "deal.deleted"
	// TypeDealStageUpdated announces a deal moving between stages
	TypeDealStageUpdated Type = "deal.stage.updated"
	// TypeStageCreated announces a new stage on a pipeline
	TypeStageCreated Type = "stage.created"
	// TypeStageDeleted announces a stage removed from a pipeline
	TypeStageDeleted Type = "stage.deleted"
	// TypeStagesReordered announces a pipeline's stages taking new orders
	TypeStagesReordered Type = "pipeline.stages.reordered"
)

// BoardEvent is the message published for every board mutation. Listeners use
// PipelineID to ignore events for boards they are not looking at, and the
// payload fields relevant to the event type to patch their local state.
type BoardEvent struct {
	Type       Type      `json:"type"`
	TenantID   string    `json:"tenant_id"`
	PipelineID string    `json:"pipeline_id"`
	DealID     string    `json:"deal_id,omitempty"`
	StageID    string    `json:"stage_id,omitempty"`

	// Stage transition, set on deal.stage.updated
	FromStageID string `json:"from_stage_id,omitempty"`
	ToStageID   string `json:"to_stage_id,omitempty"`

	// Full deal snapshot, set on deal.created and deal.updated so listeners
	// that already know the deal can patch fields in place.
	Deal *models.Deal `json:"deal,omitempty"`

	// Stage snapshot, set on stage.created
	Stage *models.Stage `json:"stage,omitempty"`

	// Final arrangement, set on pipeline.stages.reordered
	StageOrders []models.StageOrder `json:"stage_orders,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ToJSON serializes the event to JSON bytes
func (e *BoardEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ParseBoardEvent parses raw bytes into a BoardEvent
func ParseBoardEvent(data []byte) (*BoardEvent, error) {
	var e BoardEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
