package pipeline

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/google/uuid"
)

// PipelineRepository defines the interface for pipeline data access
type PipelineRepository interface {
	Create(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Pipeline, error)
	List(ctx context.Context, tenantID string) ([]*models.Pipeline, error)
	ListActive(ctx context.Context, tenantID string) ([]*models.Pipeline, error)
	Update(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error)
	Delete(ctx context.Context, tenantID, id string) error
	UnsetDefault(ctx context.Context, tenantID string) error
}

// Repository implements PipelineRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pipeline repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new pipeline
func (r *Repository) Create(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.Create")
	defer span.End()

	if pipeline.ID == "" {
		pipeline.ID = uuid.New().String()
	}

	now := Now()
	pipeline.CreatedAt = now
	pipeline.UpdatedAt = now

	row := FromPipeline(pipeline)
	ib := pipelineStruct.InsertInto(pipelinesTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        pipeline.ID,
		"tenant_id": pipeline.TenantID,
		"name":      pipeline.Name,
	}).Debug("Creating pipeline")

	_, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create pipeline")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create pipeline")
	}

	return pipeline, nil
}

// GetByID retrieves a pipeline by ID
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.GetByID")
	defer span.End()

	sb := pipelineStruct.SelectFrom(pipelinesTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Debug("Getting pipeline by ID")

	var row PipelineRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "pipeline not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pipeline")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pipeline")
	}

	return ToPipeline(&row), nil
}

// List retrieves all pipelines for a tenant
func (r *Repository) List(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.List")
	defer span.End()

	sb := pipelineStruct.SelectFrom(pipelinesTable)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("sort_order").Asc()

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
	}).Debug("Listing pipelines")

	var rows []PipelineRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pipelines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pipelines")
	}

	return ToPipelines(rows), nil
}

// ListActive retrieves all active pipelines for a tenant
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.ListActive")
	defer span.End()

	sb := pipelineStruct.SelectFrom(pipelinesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("sort_order").Asc()

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
	}).Debug("Listing active pipelines")

	var rows []PipelineRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active pipelines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active pipelines")
	}

	return ToPipelines(rows), nil
}

// Update updates an existing pipeline
func (r *Repository) Update(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.Update")
	defer span.End()

	pipeline.UpdatedAt = Now()

	ub := pipelineStruct.Update(pipelinesTable, FromPipeline(pipeline))
	ub.Where(
		ub.Equal("id", pipeline.ID),
		ub.Equal("tenant_id", pipeline.TenantID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        pipeline.ID,
		"tenant_id": pipeline.TenantID,
	}).Debug("Updating pipeline")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update pipeline")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update pipeline")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "pipeline not found")
	}

	return pipeline, nil
}

// Delete deletes a pipeline and its stages
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.Delete")
	defer span.End()

	db := pipelineStruct.DeleteFrom(pipelinesTable)
	db.Where(
		db.Equal("id", id),
		db.Equal("tenant_id", tenantID),
	)

	sql, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Debug("Deleting pipeline")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete pipeline")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete pipeline")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "pipeline not found")
	}

	return nil
}

// UnsetDefault clears the default flag on every pipeline for a tenant. Called
// before promoting another pipeline so at most one default exists.
func (r *Repository) UnsetDefault(ctx context.Context, tenantID string) error {
	ctx, span := tracing.StartSpan(ctx, "PipelineRepository.UnsetDefault")
	defer span.End()

	query := r.db.Rebind("UPDATE pipelines SET is_default = false, updated_at = ? WHERE tenant_id = ? AND is_default = true")

	_, err := r.db.ExecContext(ctx, query, Now(), tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to unset default pipeline")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to unset default pipeline")
	}

	return nil
}
