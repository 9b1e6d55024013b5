package board

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/models"
)

// Listener reconciles server-pushed board events from other sessions into the
// local board. Known deals are patched in place; an event about a deal the
// board has never seen means the local view is stale, so the whole board is
// refetched rather than guessed at. Events for other pipelines are ignored.
type Listener struct {
	board  *Board
	logger ectologger.Logger
}

// NewListener creates a listener feeding the board.
func NewListener(board *Board, logger ectologger.Logger) *Listener {
	return &Listener{
		board:  board,
		logger: logger,
	}
}

// Apply folds one event into the board state. No ordering is assumed between
// events and in-flight local mutations; the freshest record wins, judged by
// the event timestamp against the local record's updated time.
func (l *Listener) Apply(ctx context.Context, event *events.BoardEvent) error {
	pipelineID := l.board.PipelineID()
	if pipelineID == "" || event.PipelineID != pipelineID {
		return nil
	}

	switch event.Type {
	case events.TypeDealCreated, events.TypeDealUpdated, events.TypeDealStageUpdated:
		return l.applyDeal(ctx, event)
	case events.TypeDealDeleted:
		l.board.removeDeal(event.DealID)
		return nil
	case events.TypeStagesReordered:
		if l.board.applyStageOrders(event.StageOrders) {
			return nil
		}
		return l.refetch(ctx, event)
	case events.TypeStageCreated, events.TypeStageDeleted:
		return l.refetch(ctx, event)
	default:
		l.logger.WithContext(ctx).Debugf("Ignoring unknown board event type %q", event.Type)
		return nil
	}
}

func (l *Listener) applyDeal(ctx context.Context, event *events.BoardEvent) error {
	if event.Deal == nil {
		return l.refetch(ctx, event)
	}

	if l.board.patchDeal(event.Deal, event.Timestamp) {
		return nil
	}

	// A deal this board has never seen. Refetch instead of inventing a
	// partial record from the event.
	return l.refetch(ctx, event)
}

func (l *Listener) refetch(ctx context.Context, event *events.BoardEvent) error {
	l.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":  string(event.Type),
		"pipeline_id": event.PipelineID,
	}).Debug("Board stale, refetching pipeline")

	if err := l.board.Reload(ctx); err != nil {
		l.logger.WithContext(ctx).WithError(err).Error("Failed to refetch board")
		return err
	}
	return nil
}

// patchDeal folds the event's deal snapshot into the board if the deal is
// known, bumping its updated timestamp. A snapshot older than the local record
// is dropped so a lagging event cannot clobber a fresher local edit. It
// reports whether the deal was known.
func (b *Board) patchDeal(deal *models.Deal, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return false
	}
	current := b.state.Deal(deal.ID)
	if current == nil {
		return false
	}
	if at.Before(current.UpdatedAt) {
		return true
	}

	patched := cloneDeal(deal)
	if at.After(patched.UpdatedAt) {
		patched.UpdatedAt = at
	}
	b.state.UpsertDeal(patched)
	return true
}

func (b *Board) removeDeal(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return
	}
	b.state.RemoveDeal(id)
}

// applyStageOrders applies a final reorder arrangement from an event. It
// reports false when any referenced stage is unknown, meaning the caller
// should refetch instead.
func (b *Board) applyStageOrders(orders []models.StageOrder) bool {
	if len(orders) == 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return false
	}

	for _, o := range orders {
		if b.state.Stage(o.ID) == nil {
			return false
		}
	}

	sorted := append([]models.StageOrder(nil), orders...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	ids := make([]string, len(sorted))
	for i, o := range sorted {
		ids[i] = o.ID
	}
	b.state.ApplyStageOrder(ids)
	return true
}
