package deal

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

// DealRepository defines the interface for deal data access
type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) (*models.Deal, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Deal, error)
	ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Deal, error)
	ListByStage(ctx context.Context, tenantID, stageID string) ([]*models.Deal, error)
	Update(ctx context.Context, deal *models.Deal) (*models.Deal, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// Repository implements DealRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new deal repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new deal
func (r *Repository) Create(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.Create")
	defer span.End()

	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}

	now := Now()
	deal.CreatedAt = now
	deal.UpdatedAt = now

	row := FromDeal(deal)
	ib := dealStruct.InsertInto(dealsTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        deal.ID,
		"tenant_id": deal.TenantID,
		"stage_id":  deal.StageID,
		"title":     deal.Title,
	}).Debug("Creating deal")

	_, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create deal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create deal")
	}

	return deal, nil
}

// GetByID retrieves a deal by ID
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.GetByID")
	defer span.End()

	sb := dealStruct.SelectFrom(dealsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	sql, args := sb.Build()

	var row DealRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "deal not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get deal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deal")
	}

	return ToDeal(&row), nil
}

// ListByPipeline retrieves all deals whose stage belongs to the pipeline
func (r *Repository) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.ListByPipeline")
	defer span.End()

	query := r.db.Rebind(`SELECT d.* FROM deals d
		JOIN stages s ON s.id = d.stage_id
		WHERE d.tenant_id = ? AND s.pipeline_id = ?
		ORDER BY d.created_at DESC`)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"pipeline_id": pipelineID,
	}).Debug("Listing deals by pipeline")

	var rows []DealRow
	err := r.db.SelectContext(ctx, &rows, query, tenantID, pipelineID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list deals")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deals")
	}

	return ToDeals(rows), nil
}

// ListByStage retrieves all deals in a stage
func (r *Repository) ListByStage(ctx context.Context, tenantID, stageID string) ([]*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.ListByStage")
	defer span.End()

	sb := dealStruct.SelectFrom(dealsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("stage_id", stageID),
	)
	sb.OrderBy("created_at").Desc()

	sql, args := sb.Build()

	var rows []DealRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list deals by stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deals by stage")
	}

	return ToDeals(rows), nil
}

// Update updates an existing deal
func (r *Repository) Update(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.Update")
	defer span.End()

	deal.UpdatedAt = Now()

	ub := dealStruct.Update(dealsTable, FromDeal(deal))
	ub.Where(
		ub.Equal("id", deal.ID),
		ub.Equal("tenant_id", deal.TenantID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        deal.ID,
		"tenant_id": deal.TenantID,
	}).Debug("Updating deal")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update deal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update deal")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "deal not found")
	}

	return deal, nil
}

// Delete deletes a deal
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "DealRepository.Delete")
	defer span.End()

	db := dealStruct.DeleteFrom(dealsTable)
	db.Where(
		db.Equal("id", id),
		db.Equal("tenant_id", tenantID),
	)

	sql, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Debug("Deleting deal")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete deal")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete deal")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "deal not found")
	}

	return nil
}
