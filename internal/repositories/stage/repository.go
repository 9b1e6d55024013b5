package stage

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/database"
	boarderrors "github.com/Ramsey-B/aster/pkg/errors"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// isUniqueViolation reports whether the error is a Postgres unique_violation,
// which on the stages table means a sort order collision.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// StageRepository defines the interface for stage data access
type StageRepository interface {
	Create(ctx context.Context, stage *models.Stage) (*models.Stage, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Stage, error)
	ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Stage, error)
	Update(ctx context.Context, stage *models.Stage) (*models.Stage, error)
	Delete(ctx context.Context, tenantID, id string) error
	CountDeals(ctx context.Context, tenantID, stageID string) (int, error)
	SetOrders(ctx context.Context, tenantID, pipelineID string, orders []models.StageOrder) error
	InsertAfter(ctx context.Context, stage *models.Stage, afterStageID string) (*models.Stage, error)
}

// Repository implements StageRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new stage repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new stage. The requested order must be free within the
// pipeline; collisions are rejected rather than silently shifted.
func (r *Repository) Create(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.Create")
	defer span.End()

	if stage.ID == "" {
		stage.ID = uuid.New().String()
	}
	if stage.Color == "" {
		stage.Color = models.DefaultStageColor
	}
	if stage.Type == "" {
		stage.Type = models.StageTypeOpen
	}

	now := Now()
	stage.CreatedAt = now
	stage.UpdatedAt = now

	taken, err := r.orderTaken(ctx, stage.PipelineID, stage.Order, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, boarderrors.NewDuplicateOrder(stage.PipelineID, stage.Order)
	}

	row := FromStage(stage)
	ib := stageStruct.InsertInto(stagesTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          stage.ID,
		"tenant_id":   stage.TenantID,
		"pipeline_id": stage.PipelineID,
		"order":       stage.Order,
	}).Debug("Creating stage")

	_, err = r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		// orderTaken races with concurrent writers; the constraint is the
		// final word.
		if isUniqueViolation(err) {
			return nil, boarderrors.NewDuplicateOrder(stage.PipelineID, stage.Order)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create stage")
	}

	return stage, nil
}

// GetByID retrieves a stage by ID
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.GetByID")
	defer span.End()

	sb := stageStruct.SelectFrom(stagesTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	sql, args := sb.Build()

	var row StageRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "stage not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get stage")
	}

	return ToStage(&row), nil
}

// ListByPipeline retrieves all stages of a pipeline ordered ascending
func (r *Repository) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.ListByPipeline")
	defer span.End()

	sb := stageStruct.SelectFrom(stagesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("pipeline_id", pipelineID),
	)
	sb.OrderBy("sort_order").Asc()

	sql, args := sb.Build()

	var rows []StageRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list stages")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list stages")
	}

	return ToStages(rows), nil
}

// Update updates an existing stage. A changed order is checked for collision
// with the stage's siblings.
func (r *Repository) Update(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.Update")
	defer span.End()

	taken, err := r.orderTaken(ctx, stage.PipelineID, stage.Order, stage.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, boarderrors.NewDuplicateOrder(stage.PipelineID, stage.Order)
	}

	stage.UpdatedAt = Now()

	ub := stageStruct.Update(stagesTable, FromStage(stage))
	ub.Where(
		ub.Equal("id", stage.ID),
		ub.Equal("tenant_id", stage.TenantID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        stage.ID,
		"tenant_id": stage.TenantID,
	}).Debug("Updating stage")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, boarderrors.NewDuplicateOrder(stage.PipelineID, stage.Order)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update stage")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "stage not found")
	}

	return stage, nil
}

// Delete deletes a stage. Stages that still hold deals cannot be deleted; the
// deals must be moved first so none are orphaned.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.Delete")
	defer span.End()

	count, err := r.CountDeals(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return boarderrors.NewStageNotEmpty(id, count)
	}

	db := stageStruct.DeleteFrom(stagesTable)
	db.Where(
		db.Equal("id", id),
		db.Equal("tenant_id", tenantID),
	)

	sql, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Debug("Deleting stage")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete stage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete stage")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "stage not found")
	}

	return nil
}

// CountDeals returns the number of deals currently in a stage
func (r *Repository) CountDeals(ctx context.Context, tenantID, stageID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.CountDeals")
	defer span.End()

	query := r.db.Rebind("SELECT COUNT(*) FROM deals WHERE tenant_id = ? AND stage_id = ?")

	var count int
	err := r.db.GetContext(ctx, &count, query, tenantID, stageID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count deals for stage")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count deals for stage")
	}

	return count, nil
}

// SetOrders rewrites the order of every listed stage in a single transaction.
// Because (pipeline_id, sort_order) is unique, the final values cannot be
// written directly: swapping two stages would collide mid-flight. Each stage is
// first parked on a negative placeholder order, which no real stage ever
// occupies, then moved to its final order. Any failure rolls back the whole
// set, so concurrent readers only ever observe the old arrangement or the new
// one.
func (r *Repository) SetOrders(ctx context.Context, tenantID, pipelineID string, orders []models.StageOrder) error {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.SetOrders")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	countQuery := tx.Rebind("SELECT COUNT(*) FROM stages WHERE tenant_id = ? AND pipeline_id = ? AND id = ?")
	for _, o := range orders {
		var count int
		if err := tx.GetContext(txCtx, &count, countQuery, tenantID, pipelineID, o.ID); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to verify stage membership")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reorder stages")
		}
		if count == 0 {
			return boarderrors.NewInvalidStageReference(pipelineID, o.ID)
		}
	}

	now := Now()
	updateQuery := tx.Rebind("UPDATE stages SET sort_order = ?, updated_at = ? WHERE tenant_id = ? AND pipeline_id = ? AND id = ?")

	// Phase 1: park every stage on a unique negative order.
	for i, o := range orders {
		if _, err := tx.ExecContext(txCtx, updateQuery, -(i + 1), now, tenantID, pipelineID, o.ID); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"stage_id": o.ID,
			}).Error("Failed to park stage order")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reorder stages")
		}
	}

	// Phase 2: move every stage to its final order. A final order can still
	// collide with a stage the request omitted; the constraint catches it and
	// the whole set rolls back.
	for _, o := range orders {
		if _, err := tx.ExecContext(txCtx, updateQuery, o.Order, now, tenantID, pipelineID, o.ID); err != nil {
			if isUniqueViolation(err) {
				return boarderrors.NewDuplicateOrder(pipelineID, o.Order)
			}
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"stage_id": o.ID,
				"order":    o.Order,
			}).Error("Failed to set stage order")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reorder stages")
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reorder stages")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"pipeline_id": pipelineID,
		"stages":      len(orders),
	}).Info("Reordered stages")

	return nil
}

// InsertAfter inserts a new stage directly after an existing one, shifting
// every later stage up by one. The shift walks from the highest order down so
// each bump lands on a slot just vacated and never trips the unique
// constraint. The whole operation runs in one transaction.
func (r *Repository) InsertAfter(ctx context.Context, stage *models.Stage, afterStageID string) (*models.Stage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageRepository.InsertAfter")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var afterRow StageRow
	afterQuery := tx.Rebind("SELECT * FROM stages WHERE tenant_id = ? AND pipeline_id = ? AND id = ?")
	err = tx.GetContext(txCtx, &afterRow, afterQuery, stage.TenantID, stage.PipelineID, afterStageID)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, boarderrors.NewInvalidStageReference(stage.PipelineID, afterStageID)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load anchor stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert stage")
	}

	newOrder := int(afterRow.Order.Int64) + 1

	var shiftRows []StageRow
	shiftQuery := tx.Rebind("SELECT * FROM stages WHERE tenant_id = ? AND pipeline_id = ? AND sort_order >= ? ORDER BY sort_order DESC")
	err = tx.SelectContext(txCtx, &shiftRows, shiftQuery, stage.TenantID, stage.PipelineID, newOrder)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load stages to shift")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert stage")
	}

	now := Now()
	bumpQuery := tx.Rebind("UPDATE stages SET sort_order = ?, updated_at = ? WHERE id = ?")
	for _, row := range shiftRows {
		if _, err := tx.ExecContext(txCtx, bumpQuery, int(row.Order.Int64)+1, now, row.ID.String); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"stage_id": row.ID.String,
			}).Error("Failed to shift stage order")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert stage")
		}
	}

	if stage.ID == "" {
		stage.ID = uuid.New().String()
	}
	if stage.Color == "" {
		stage.Color = models.DefaultStageColor
	}
	if stage.Type == "" {
		stage.Type = models.StageTypeOpen
	}
	stage.Order = newOrder
	stage.CreatedAt = now
	stage.UpdatedAt = now

	ib := stageStruct.InsertInto(stagesTable, FromStage(stage))
	insertSQL, args := ib.Build()
	if _, err := tx.ExecContext(txCtx, insertSQL, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert stage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert stage")
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert stage")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          stage.ID,
		"pipeline_id": stage.PipelineID,
		"order":       stage.Order,
		"after":       afterStageID,
	}).Info("Inserted stage")

	return stage, nil
}

// orderTaken reports whether another stage in the pipeline already holds the
// given order. excludeID skips the stage being updated.
func (r *Repository) orderTaken(ctx context.Context, pipelineID string, order int, excludeID string) (bool, error) {
	query := r.db.Rebind("SELECT COUNT(*) FROM stages WHERE pipeline_id = ? AND sort_order = ? AND id != ?")

	var count int
	err := r.db.GetContext(ctx, &count, query, pipelineID, order, excludeID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check stage order")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check stage order")
	}

	return count > 0, nil
}
