package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	pipelinerepo "github.com/Ramsey-B/aster/internal/repositories/pipeline"
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

// BoardCache caches assembled pipeline views
type BoardCache interface {
	GetPipeline(ctx context.Context, tenantID, pipelineID string) (*models.Pipeline, error)
	SetPipeline(ctx context.Context, pipeline *models.Pipeline) error
	InvalidatePipeline(ctx context.Context, tenantID, pipelineID string) error
}

// Service owns pipeline and stage arrangement rules
type Service struct {
	pipelines pipelinerepo.PipelineRepository
	stages    stagerepo.StageRepository
	emitter   Emitter
	cache     BoardCache
	logger    ectologger.Logger
}

// NewService creates a new pipeline service
func NewService(
	pipelines pipelinerepo.PipelineRepository,
	stages stagerepo.StageRepository,
	emitter Emitter,
	cache BoardCache,
	logger ectologger.Logger,
) *Service {
	return &Service{
		pipelines: pipelines,
		stages:    stages,
		emitter:   emitter,
		cache:     cache,
		logger:    logger,
	}
}

// ListPipelines returns the tenant's pipelines with their stages attached
func (s *Service) ListPipelines(ctx context.Context, tenantID string, activeOnly bool) ([]*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.ListPipelines")
	defer span.End()

	var pipelines []*models.Pipeline
	var err error
	if activeOnly {
		pipelines, err = s.pipelines.ListActive(ctx, tenantID)
	} else {
		pipelines, err = s.pipelines.List(ctx, tenantID)
	}
	if err != nil {
		return nil, err
	}

	for _, p := range pipelines {
		stages, err := s.stages.ListByPipeline(ctx, tenantID, p.ID)
		if err != nil {
			return nil, err
		}
		p.Stages = stages
	}

	return pipelines, nil
}

// GetPipeline returns a pipeline with its stages, served from cache when fresh
func (s *Service) GetPipeline(ctx context.Context, tenantID, id string) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.GetPipeline")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetPipeline(ctx, tenantID, id)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Pipeline cache read failed")
		} else if cached != nil {
			metrics.BoardCacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.BoardCacheHits.WithLabelValues("miss").Inc()
	}

	pipeline, err := s.pipelines.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	stages, err := s.stages.ListByPipeline(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	pipeline.Stages = stages

	if s.cache != nil {
		if err := s.cache.SetPipeline(ctx, pipeline); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Pipeline cache write failed")
		}
	}

	return pipeline, nil
}

// CreatePipeline creates a pipeline, optionally with an initial set of stages
func (s *Service) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.CreatePipeline")
	defer span.End()

	if pipeline.Name == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if pipeline.IsDefault {
		if err := s.pipelines.UnsetDefault(ctx, pipeline.TenantID); err != nil {
			return nil, err
		}
	}
	pipeline.IsActive = true

	created, err := s.pipelines.Create(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	stages := pipeline.Stages
	created.Stages = make([]*models.Stage, 0, len(stages))
	for i, st := range stages {
		st.TenantID = created.TenantID
		st.PipelineID = created.ID
		st.Order = i
		createdStage, err := s.stages.Create(ctx, st)
		if err != nil {
			return nil, err
		}
		created.Stages = append(created.Stages, createdStage)
	}

	return created, nil
}

// UpdatePipeline updates a pipeline's own fields
func (s *Service) UpdatePipeline(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.UpdatePipeline")
	defer span.End()

	existing, err := s.pipelines.GetByID(ctx, pipeline.TenantID, pipeline.ID)
	if err != nil {
		return nil, err
	}

	if pipeline.IsDefault && !existing.IsDefault {
		if err := s.pipelines.UnsetDefault(ctx, pipeline.TenantID); err != nil {
			return nil, err
		}
	}
	pipeline.CreatedAt = existing.CreatedAt

	updated, err := s.pipelines.Update(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, pipeline.TenantID, pipeline.ID)
	return updated, nil
}

// DeletePipeline deletes a pipeline and everything under it
func (s *Service) DeletePipeline(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.DeletePipeline")
	defer span.End()

	if err := s.pipelines.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.invalidate(ctx, tenantID, id)
	return nil
}

// CreateStage appends a stage to a pipeline at an explicit order
func (s *Service) CreateStage(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.CreateStage")
	defer span.End()

	if stage.Name == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if _, err := s.pipelines.GetByID(ctx, stage.TenantID, stage.PipelineID); err != nil {
		return nil, err
	}

	created, err := s.stages.Create(ctx, stage)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, stage.TenantID, stage.PipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:       events.TypeStageCreated,
		TenantID:   created.TenantID,
		PipelineID: created.PipelineID,
		StageID:    created.ID,
		Stage:      created,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeStageCreated)).Inc()

	return created, nil
}

// InsertStageAfter inserts a stage directly after an existing one, shifting
// the rest of the pipeline up by one slot
func (s *Service) InsertStageAfter(ctx context.Context, stage *models.Stage, afterStageID string) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.InsertStageAfter")
	defer span.End()

	if stage.Name == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if afterStageID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "after_stage_id is required")
	}

	anchor, err := s.stages.GetByID(ctx, stage.TenantID, afterStageID)
	if err != nil {
		return nil, boarderrors.NewInvalidStageReference(stage.PipelineID, afterStageID)
	}
	if anchor.PipelineID != stage.PipelineID {
		return nil, boarderrors.NewInvalidStageReference(stage.PipelineID, afterStageID)
	}
	if anchor.IsClosed() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot insert a stage after a WON or LOST stage")
	}

	created, err := s.stages.InsertAfter(ctx, stage, afterStageID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, stage.TenantID, stage.PipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:       events.TypeStageCreated,
		TenantID:   created.TenantID,
		PipelineID: created.PipelineID,
		StageID:    created.ID,
		Stage:      created,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeStageCreated)).Inc()

	return created, nil
}

// ReorderStages rewrites a pipeline's stage arrangement in one transaction.
// The request must name distinct stages with distinct non-negative orders;
// stages it omits keep their current order.
func (s *Service) ReorderStages(ctx context.Context, tenantID, pipelineID string, orders []models.StageOrder) error {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.ReorderStages")
	defer span.End()

	if len(orders) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "at least one stage is required")
	}

	seenIDs := make(map[string]bool, len(orders))
	seenOrders := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o.ID == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "stage id is required")
		}
		if o.Order < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "order must not be negative")
		}
		if seenIDs[o.ID] {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "stage %s appears more than once", o.ID)
		}
		if seenOrders[o.Order] {
			return boarderrors.NewDuplicateOrder(pipelineID, o.Order)
		}
		seenIDs[o.ID] = true
		seenOrders[o.Order] = true
	}

	start := time.Now()
	err := s.stages.SetOrders(ctx, tenantID, pipelineID, orders)
	metrics.StageReorderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageReordersTotal.WithLabelValues(tenantID, "error").Inc()
		return err
	}
	metrics.StageReordersTotal.WithLabelValues(tenantID, "ok").Inc()

	s.invalidate(ctx, tenantID, pipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:        events.TypeStagesReordered,
		TenantID:    tenantID,
		PipelineID:  pipelineID,
		StageOrders: orders,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeStagesReordered)).Inc()

	return nil
}

// UpdateStage applies a partial update to a stage. Fields the patch leaves
// nil keep their current value; a changed order is checked for collision with
// the stage's siblings.
func (s *Service) UpdateStage(ctx context.Context, tenantID, stageID string, patch *models.StagePatch) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.UpdateStage")
	defer span.End()

	existing, err := s.stages.GetByID(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return existing, nil
	}
	patch.Apply(existing)

	updated, err := s.stages.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, tenantID, updated.PipelineID)
	return updated, nil
}

// DeleteStage deletes an empty stage
func (s *Service) DeleteStage(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "PipelineService.DeleteStage")
	defer span.End()

	existing, err := s.stages.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.stages.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.invalidate(ctx, tenantID, existing.PipelineID)
	s.emitter.Emit(ctx, &events.BoardEvent{
		Type:       events.TypeStageDeleted,
		TenantID:   tenantID,
		PipelineID: existing.PipelineID,
		StageID:    id,
	})
	metrics.EventsPublishedTotal.WithLabelValues(string(events.TypeStageDeleted)).Inc()

	return nil
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
