package deal

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	activityrepo "github.com/Ramsey-B/aster/internal/repositories/activity"
	dealrepo "github.com/Ramsey-B/aster/internal/repositories/deal"
	stagerepo "github.com/Ramsey-B/aster/internal/repositories/stage"
	boarderrors "github.com/Ramsey-B/aster/pkg/errors"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Emitter publishes board events after a mutation commits
type Emitter interface {
	Emit(ctx context.Context, event *events.BoardEvent)
}

// BoardCache invalidates cached pipeline views on deal mutations
type BoardCache interface {
	InvalidatePipeline(ctx context.Context, tenantID, pipelineID string) error
}

// Service owns deal lifecycle rules, including how a deal moves across the board
type Service struct {
	deals      dealrepo.DealRepository
	stages     stagerepo.StageRepository
	activities activityrepo.ActivityRepository
	emitter    Emitter
	cache      BoardCache
	logger     ectologger.Logger
}

// NewService creates a new deal service
func NewService(
	deals dealrepo.DealRepository,
	stages stagerepo.StageRepository,
	activities activityrepo.ActivityRepository,
	emitter Emitter,
	cache BoardCache,
	logger ectologger.Logger,
) *Service {
	return &Service{
		deals:      deals,
		stages:     stages,
		activities: activities,
		emitter:    emitter,
		cache:      cache,
		logger:     logger,
	}
}

// GetDeal returns a single deal
func (s *Service) GetDeal(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealService.GetDeal")
	defer span.End()

	return s.deals.GetByID(ctx, tenantID, id)
}

// ListByPipeline returns every deal on a pipeline's board
func (s *Service) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealService.ListByPipeline")
	defer span.End()

	return s.deals.ListByPipeline(ctx, tenantID, pipelineID)
}

// ListActivities returns a deal's timeline, newest first
func (s *Service) ListActivities(ctx context.Context, tenantID, dealID string) ([]*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "DealService.ListActivities")
	defer span.End()

	if _, err := s.deals.GetByID(ctx, tenantID, dealID); err != nil {
		return nil, err
	}

	return s.activities.ListByDeal(ctx, tenantID, dealID)
}

// CreateDeal creates a deal in its starting stage and records the creation on
// the deal's timeline
func (s *Service) CreateDeal(ctx context.Context, userID string, deal *models.Deal) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealService.CreateDeal")
	defer span.End()

	if deal.Title == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if deal.StageID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "stage_id is required")
	}

	stage, err := s.stages.GetByID(ctx, deal.TenantID, deal.StageID)
	if err != nil {
		return nil, err
	}

	created, err := s.deals.Create(ctx, deal)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, &models.Activity{
		TenantID: created.TenantID,
		DealID:   created.ID,
		UserID:   userID,
		Type:     models.ActivityDealCreated,
		Metadata: models.ActivityMetadata{ToStage: stage.ID},
	})

	s.invalidate(ctx, created.TenantID, stage.PipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:       events.TypeDealCreated,
		TenantID:   created.TenantID,
		PipelineID: stage.PipelineID,
		DealID:     created.ID,
		StageID:    stage.ID,
		Deal:       created,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeDealCreated)).Inc()

	return created, nil
}

// UpdateDeal applies a partial update. A patch that moves the deal to a stage
// of another pipeline is rejected; a patch naming the deal's current stage is
// treated as a plain field update. Stage moves are announced separately from
// field edits so board listeners know whether a card changed columns.
func (s *Service) UpdateDeal(ctx context.Context, tenantID, userID, id string, patch models.DealPatch) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealService.UpdateDeal")
	defer span.End()

	deal, err := s.deals.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	fromStage, err := s.stages.GetByID(ctx, tenantID, deal.StageID)
	if err != nil {
		return nil, err
	}

	moved := patch.StageID != nil && *patch.StageID != deal.StageID

	toStage := fromStage
	if moved {
		toStage, err = s.stages.GetByID(ctx, tenantID, *patch.StageID)
		if err != nil {
			return nil, err
		}
		if toStage.PipelineID != fromStage.PipelineID {
			metrics.DealMovesTotal.WithLabelValues(tenantID, "rejected").Inc()
			return nil, boarderrors.NewInvalidStageReference(fromStage.PipelineID, toStage.ID)
		}
	}

	if patch.IsEmpty() {
		return deal, nil
	}

	patch.Apply(deal)

	updated, err := s.deals.Update(ctx, deal)
	if err != nil {
		if moved {
			metrics.DealMovesTotal.WithLabelValues(tenantID, "error").Inc()
		}
		return nil, err
	}

	s.invalidate(ctx, tenantID, fromStage.PipelineID)

	if moved {
		metrics.DealMovesTotal.WithLabelValues(tenantID, "ok").Inc()
		s.recordActivity(ctx, &models.Activity{
			TenantID: tenantID,
			DealID:   updated.ID,
			UserID:   userID,
			Type:     models.ActivityStageChange,
			Metadata: models.ActivityMetadata{
				FromStage: fromStage.ID,
				ToStage:   toStage.ID,
			},
		})

		s.emitter.Emit(ctx, &events.BoardEvent{
			Type:        events.TypeDealStageUpdated,
			TenantID:    tenantID,
			PipelineID:  fromStage.PipelineID,
			DealID:      updated.ID,
			StageID:     toStage.ID,
			FromStageID: fromStage.ID,
			ToStageID:   toStage.ID,
			Deal:        updated,
		})
		metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeDealStageUpdated)).Inc()
	} else {
		s.emitter.Emit(ctx, &events.BoardEvent{
			Type:       events.TypeDealUpdated,
			TenantID:   tenantID,
			PipelineID: fromStage.PipelineID,
			DealID:     updated.ID,
			StageID:    updated.StageID,
			Deal:       updated,
		})
		metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeDealUpdated)).Inc()
	}

	return updated, nil
}

// DeleteDeal removes a deal from the board
func (s *Service) DeleteDeal(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "DealService.DeleteDeal")
	defer span.End()

	deal, err := s.deals.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	stage, err := s.stages.GetByID(ctx, tenantID, deal.StageID)
	if err != nil {
		return err
	}

	if err := s.deals.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.invalidate(ctx, tenantID, stage.PipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:       events.TypeDealDeleted,
		TenantID:   tenantID,
		PipelineID: stage.PipelineID,
		DealID:     id,
		StageID:    stage.ID,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeDealDeleted)).Inc()

	return nil
}

// recordActivity writes a timeline entry. The mutation already committed, so
// a failed activity write is logged rather than surfaced.
func (s *Service) recordActivity(ctx context.Context, activity *models.Activity) {
	if _, err := s.activities.Create(ctx, activity); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"deal_id": activity.DealID,
			"type":    activity.Type,
		}).Error("Failed to record activity")
	}
}

func (s *Service) invalidate(ctx context.Context, tenantID, pipelineID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePipeline(ctx, tenantID, pipelineID); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"pipeline_id": pipelineID,
		}).Warn("Failed to invalidate pipeline cache")
	}
}
