package activity

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

// ActivityRepository defines the interface for activity data access
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) (*models.Activity, error)
	ListByDeal(ctx context.Context, tenantID, dealID string) ([]*models.Activity, error)
}

// Repository implements ActivityRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new activity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create records an activity on a deal's timeline
func (r *Repository) Create(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "ActivityRepository.Create")
	defer span.End()

	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	activity.CreatedAt = Now()

	row := FromActivity(activity)
	ib := activityStruct.InsertInto(activitiesTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":      activity.ID,
		"deal_id": activity.DealID,
		"type":    activity.Type,
	}).Debug("Creating activity")

	_, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create activity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create activity")
	}

	return activity, nil
}

// ListByDeal retrieves a deal's activities, newest first
func (r *Repository) ListByDeal(ctx context.Context, tenantID, dealID string) ([]*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "ActivityRepository.ListByDeal")
	defer span.End()

	sb := activityStruct.SelectFrom(activitiesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("deal_id", dealID),
	)
	sb.OrderBy("created_at").Desc()

	sql, args := sb.Build()

	var rows []ActivityRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list activities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list activities")
	}

	return ToActivities(rows), nil
}
