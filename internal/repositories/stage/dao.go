package stage

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

const (
	stagesTable = "stages"
)

// StageRow represents the database row for a stage
type StageRow struct {
	ID         sql.NullString `db:"id"`
	TenantID   sql.NullString `db:"tenant_id"`
	PipelineID sql.NullString `db:"pipeline_id"`
	Name       sql.NullString `db:"name"`
	Order      sql.NullInt64  `db:"sort_order"`
	Color      sql.NullString `db:"color"`
	IsDefault  sql.NullBool   `db:"is_default"`
	Type       sql.NullString `db:"stage_type"`
	CreatedAt  sql.NullTime   `db:"created_at"`
	UpdatedAt  sql.NullTime   `db:"updated_at"`
}

var stageStruct = database.NewStruct(new(StageRow))

// FromStage converts a domain model to a database row
func FromStage(s *models.Stage) *StageRow {
	return &StageRow{
		ID:         sql.NullString{String: s.ID, Valid: s.ID != ""},
		TenantID:   sql.NullString{String: s.TenantID, Valid: s.TenantID != ""},
		PipelineID: sql.NullString{String: s.PipelineID, Valid: s.PipelineID != ""},
		Name:       sql.NullString{String: s.Name, Valid: s.Name != ""},
		Order:      sql.NullInt64{Int64: int64(s.Order), Valid: true},
		Color:      sql.NullString{String: s.Color, Valid: s.Color != ""},
		IsDefault:  sql.NullBool{Bool: s.IsDefault, Valid: true},
		Type:       sql.NullString{String: string(s.Type), Valid: s.Type != ""},
		CreatedAt:  sql.NullTime{Time: s.CreatedAt, Valid: !s.CreatedAt.IsZero()},
		UpdatedAt:  sql.NullTime{Time: s.UpdatedAt, Valid: !s.UpdatedAt.IsZero()},
	}
}

// ToStage converts a database row to a domain model
func ToStage(row *StageRow) *models.Stage {
	return &models.Stage{
		ID:         row.ID.String,
		TenantID:   row.TenantID.String,
		PipelineID: row.PipelineID.String,
		Name:       row.Name.String,
		Order:      int(row.Order.Int64),
		Color:      row.Color.String,
		IsDefault:  row.IsDefault.Bool,
		Type:       models.StageType(row.Type.String),
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

// ToStages converts a slice of database rows to domain models
func ToStages(rows []StageRow) []*models.Stage {
	stages := make([]*models.Stage, len(rows))
	for i, row := range rows {
		stages[i] = ToStage(&row)
	}
	return stages
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
