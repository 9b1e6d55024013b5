package activity

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

const (
	activitiesTable = "activities"
)

// ActivityRow represents the database row for an activity
type ActivityRow struct {
	ID        sql.NullString                          `db:"id"`
	TenantID  sql.NullString                          `db:"tenant_id"`
	DealID    sql.NullString                          `db:"deal_id"`
	UserID    sql.NullString                          `db:"user_id"`
	Type      sql.NullString                          `db:"activity_type"`
	Metadata  database.JSONB[models.ActivityMetadata] `db:"metadata"`
	CreatedAt sql.NullTime                            `db:"created_at"`
}

var activityStruct = database.NewStruct(new(ActivityRow))

// FromActivity converts a domain model to a database row
func FromActivity(a *models.Activity) *ActivityRow {
	return &ActivityRow{
		ID:        sql.NullString{String: a.ID, Valid: a.ID != ""},
		TenantID:  sql.NullString{String: a.TenantID, Valid: a.TenantID != ""},
		DealID:    sql.NullString{String: a.DealID, Valid: a.DealID != ""},
		UserID:    sql.NullString{String: a.UserID, Valid: a.UserID != ""},
		Type:      sql.NullString{String: string(a.Type), Valid: a.Type != ""},
		Metadata:  database.JSONB[models.ActivityMetadata]{Data: a.Metadata},
		CreatedAt: sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()},
	}
}

// ToActivity converts a database row to a domain model
func ToActivity(row *ActivityRow) *models.Activity {
	return &models.Activity{
		ID:        row.ID.String,
		TenantID:  row.TenantID.String,
		DealID:    row.DealID.String,
		UserID:    row.UserID.String,
		Type:      models.ActivityType(row.Type.String),
		Metadata:  row.Metadata.Data,
		CreatedAt: row.CreatedAt.Time,
	}
}

// ToActivities converts a slice of database rows to domain models
func ToActivities(rows []ActivityRow) []*models.Activity {
	activities := make([]*models.Activity, len(rows))
	for i, row := range rows {
		activities[i] = ToActivity(&row)
	}
	return activities
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
