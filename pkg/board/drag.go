package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
)

// DragKind discriminates what a drag gesture carries. Deal cards and stage
// columns share one drag event channel, so every payload is tagged and every
// drop handler checks the tag before doing anything.
type DragKind string

const (
	// KindDeal marks a dragged deal card
	KindDeal DragKind = "deal"
	// KindStage marks a dragged stage column
	KindStage DragKind = "stage"
)

// DragPayload is the tagged union transferred with a drag gesture.
type DragPayload struct {
	Kind        DragKind `json:"kind"`
	DealID      string   `json:"deal_id,omitempty"`
	FromStageID string   `json:"from_stage_id,omitempty"`
	StageID     string   `json:"stage_id,omitempty"`
}

// Encode serializes the payload for the drag data channel.
func (p DragPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeDragPayload parses transferred drag data.
func DecodeDragPayload(data []byte) (DragPayload, error) {
	var p DragPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return DragPayload{}, fmt.Errorf("failed to decode drag payload: %w", err)
	}
	if p.Kind != KindDeal && p.Kind != KindStage {
		return DragPayload{}, fmt.Errorf("unknown drag kind %q", p.Kind)
	}
	return p, nil
}

// Controller runs one drag gesture at a time against a Board. A gesture is
// bracketed by BeginDeal/BeginStage and exactly one of DropOnStage, EndStage,
// or Cancel. Stage drag-over previews reorder the board locally only; the
// single server reorder call happens on EndStage.
type Controller struct {
	board  *Board
	logger ectologger.Logger

	dragging  *DragPayload
	preDrag   *Snapshot
	candidate []string
}

// NewController creates a drag controller for the board.
func NewController(board *Board, logger ectologger.Logger) *Controller {
	return &Controller{
		board:  board,
		logger: logger,
	}
}

// BeginDeal starts dragging a deal card and returns the encoded payload to
// attach to the gesture.
func (c *Controller) BeginDeal(dealID string) ([]byte, error) {
	deal := c.board.Deal(dealID)
	if deal == nil {
		return nil, fmt.Errorf("unknown deal %s", dealID)
	}

	payload := DragPayload{Kind: KindDeal, DealID: dealID, FromStageID: deal.StageID}
	c.begin(payload)
	return payload.Encode()
}

// BeginStage starts dragging a stage column.
func (c *Controller) BeginStage(stageID string) ([]byte, error) {
	found := false
	for _, id := range c.board.StageIDs() {
		if id == stageID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown stage %s", stageID)
	}

	payload := DragPayload{Kind: KindStage, StageID: stageID}
	c.begin(payload)
	return payload.Encode()
}

func (c *Controller) begin(payload DragPayload) {
	c.dragging = &payload
	c.preDrag = c.board.snapshot()
	c.candidate = nil
}

// DragOverStage handles the pointer passing over a sibling column while a
// stage is being dragged. It recomputes the candidate ordering with the
// dragged stage moved to the hovered stage's position and previews it on the
// board. Deal payloads are ignored here, a deal hovering a column is not a
// reorder.
func (c *Controller) DragOverStage(data []byte, overStageID string) error {
	payload, err := DecodeDragPayload(data)
	if err != nil {
		return err
	}
	if payload.Kind != KindStage {
		return nil
	}
	if payload.StageID == overStageID {
		return nil
	}

	candidate := moveBefore(c.board.StageIDs(), payload.StageID, overStageID)
	if candidate == nil {
		return nil
	}
	c.candidate = candidate
	c.board.applyStageOrder(candidate)
	return nil
}

// DropOnStage handles a drop onto a stage column. Only deal payloads move
// anything: a stage payload dropped here is the column reorder gesture, which
// EndStage finishes, so it early-returns without side effects. Dropping a deal
// onto its own column is a no-op with no server call.
func (c *Controller) DropOnStage(ctx context.Context, data []byte, targetStageID string) error {
	payload, err := DecodeDragPayload(data)
	if err != nil {
		return err
	}
	if payload.Kind != KindDeal {
		return nil
	}
	defer c.reset()

	if payload.FromStageID == targetStageID {
		return nil
	}
	return c.board.MoveDeal(ctx, payload.DealID, targetStageID)
}

// EndStage finishes a stage drag gesture with exactly one reorder call for
// the final candidate ordering. Deal payloads are ignored. If the gesture
// never produced a new ordering there is nothing to persist.
func (c *Controller) EndStage(ctx context.Context, data []byte) error {
	payload, err := DecodeDragPayload(data)
	if err != nil {
		return err
	}
	if payload.Kind != KindStage {
		return nil
	}
	defer c.reset()

	if c.candidate == nil {
		return nil
	}
	return c.board.ReorderStages(ctx, c.candidate)
}

// Cancel abandons the in-flight gesture, restoring the pre-drag board with no
// server call.
func (c *Controller) Cancel() {
	if c.dragging == nil {
		return
	}
	c.board.restore(c.preDrag)
	c.reset()
}

func (c *Controller) reset() {
	c.dragging = nil
	c.preDrag = nil
	c.candidate = nil
}

// moveBefore returns ids with moved removed and re-inserted at target's
// position. Returns nil when either ID is missing.
func moveBefore(ids []string, moved string, target string) []string {
	without := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != moved {
			without = append(without, id)
		}
	}
	if len(without) == len(ids) {
		return nil
	}

	for i, id := range without {
		if id == target {
			out := make([]string, 0, len(ids))
			out = append(out, without[:i]...)
			out = append(out, moved)
			out = append(out, without[i:]...)
			return out
		}
	}
	return nil
}
