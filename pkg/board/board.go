package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/models"
)

// Board holds a pipeline's optimistic client state and performs drag-and-drop
// mutations against the server: apply locally first, then persist, and revert
// if the server refuses.
type Board struct {
	mu     sync.Mutex
	client Client
	logger ectologger.Logger
	state  *State
}

// New creates an unloaded board. Call Load before anything else.
func New(client Client, logger ectologger.Logger) *Board {
	return &Board{
		client: client,
		logger: logger,
	}
}

// Load fetches the pipeline and its deals and replaces the board state.
func (b *Board) Load(ctx context.Context, pipelineID string) error {
	pipeline, err := b.client.GetPipeline(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}
	deals, err := b.client.ListDeals(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to load deals: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = NewState(pipeline, deals)
	return nil
}

// Reload refetches the authoritative pipeline and deals, discarding whatever
// the board currently shows.
func (b *Board) Reload(ctx context.Context) error {
	b.mu.Lock()
	if b.state == nil {
		b.mu.Unlock()
		return fmt.Errorf("board is not loaded")
	}
	pipelineID := b.state.PipelineID()
	b.mu.Unlock()

	return b.Load(ctx, pipelineID)
}

// PipelineID returns the loaded pipeline's ID, or "" before Load.
func (b *Board) PipelineID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return ""
	}
	return b.state.PipelineID()
}

// Columns returns the current board columns.
func (b *Board) Columns() []Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil
	}
	return b.state.Columns()
}

// StageIDs returns the current stage ordering.
func (b *Board) StageIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil
	}
	return b.state.StageIDs()
}

// Deal returns a copy of the deal as the board currently shows it, or nil.
func (b *Board) Deal(id string) *models.Deal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil
	}
	d := b.state.Deal(id)
	if d == nil {
		return nil
	}
	return cloneDeal(d)
}

// MoveDeal relocates a deal into another stage. Moving a deal to the stage it
// is already in is a no-op and makes no server call. The relocation is applied
// locally first; if the server rejects it the board reverts to its pre-move
// state and the error is returned to be surfaced to the user.
func (b *Board) MoveDeal(ctx context.Context, dealID string, toStageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return fmt.Errorf("board is not loaded")
	}

	deal := b.state.Deal(dealID)
	if deal == nil {
		return fmt.Errorf("unknown deal %s", dealID)
	}
	if deal.StageID == toStageID {
		return nil
	}

	snap := b.state.Snapshot()
	b.state.MoveDeal(dealID, toStageID)

	updated, err := b.client.MoveDeal(ctx, dealID, toStageID)
	if err != nil {
		b.state.Restore(snap)
		b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"deal_id":  dealID,
			"stage_id": toStageID,
		}).Warn("Deal move rejected, board reverted")
		return fmt.Errorf("failed to move deal: %w", err)
	}

	// The server's copy carries the authoritative updated_at.
	b.state.UpsertDeal(updated)
	return nil
}

// ReorderStages arranges the pipeline's stages in the given sequence, deriving
// each stage's order from its index. The new arrangement shows immediately; on
// server failure the optimistic order is discarded and the authoritative
// pipeline is reloaded.
func (b *Board) ReorderStages(ctx context.Context, orderedIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return fmt.Errorf("board is not loaded")
	}

	orders := make([]models.StageOrder, len(orderedIDs))
	for i, id := range orderedIDs {
		if b.state.Stage(id) == nil {
			return fmt.Errorf("unknown stage %s", id)
		}
		orders[i] = models.StageOrder{ID: id, Order: i}
	}

	snap := b.state.Snapshot()
	b.state.ApplyStageOrder(orderedIDs)

	if err := b.client.ReorderStages(ctx, b.state.PipelineID(), orders); err != nil {
		b.logger.WithContext(ctx).WithError(err).Warn("Stage reorder rejected, reloading pipeline")
		if reloadErr := b.reloadLocked(ctx); reloadErr != nil {
			b.state.Restore(snap)
			b.logger.WithContext(ctx).WithError(reloadErr).Error("Failed to reload pipeline after rejected reorder")
		}
		return fmt.Errorf("failed to reorder stages: %w", err)
	}
	return nil
}

// snapshot and restore let the drag controller bracket a gesture.

func (b *Board) snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil
	}
	return b.state.Snapshot()
}

func (b *Board) restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return
	}
	b.state.Restore(snap)
}

// applyStageOrder applies a candidate stage ordering locally without talking
// to the server. Used for the live preview while a stage drag is in flight.
func (b *Board) applyStageOrder(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return
	}
	b.state.ApplyStageOrder(ids)
}

func (b *Board) reloadLocked(ctx context.Context) error {
	pipeline, err := b.client.GetPipeline(ctx, b.state.PipelineID())
	if err != nil {
		return err
	}
	deals, err := b.client.ListDeals(ctx, b.state.PipelineID())
	if err != nil {
		return err
	}
	b.state = NewState(pipeline, deals)
	return nil
}
