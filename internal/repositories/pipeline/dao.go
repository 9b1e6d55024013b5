package pipeline

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

const (
	pipelinesTable = "pipelines"
)

// PipelineRow represents the database row for a pipeline
type PipelineRow struct {
	ID          sql.NullString `db:"id"`
	TenantID    sql.NullString `db:"tenant_id"`
	Name        sql.NullString `db:"name"`
	Description sql.NullString `db:"description"`
	IsDefault   sql.NullBool   `db:"is_default"`
	IsActive    sql.NullBool   `db:"is_active"`
	Order       sql.NullInt64  `db:"sort_order"`
	CreatedAt   sql.NullTime   `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
}

var pipelineStruct = database.NewStruct(new(PipelineRow))

// FromPipeline converts a domain model to a database row
func FromPipeline(p *models.Pipeline) *PipelineRow {
	return &PipelineRow{
		ID:          sql.NullString{String: p.ID, Valid: p.ID != ""},
		TenantID:    sql.NullString{String: p.TenantID, Valid: p.TenantID != ""},
		Name:        sql.NullString{String: p.Name, Valid: p.Name != ""},
		Description: sql.NullString{String: p.Description, Valid: p.Description != ""},
		IsDefault:   sql.NullBool{Bool: p.IsDefault, Valid: true},
		IsActive:    sql.NullBool{Bool: p.IsActive, Valid: true},
		Order:       sql.NullInt64{Int64: int64(p.Order), Valid: true},
		CreatedAt:   sql.NullTime{Time: p.CreatedAt, Valid: !p.CreatedAt.IsZero()},
		UpdatedAt:   sql.NullTime{Time: p.UpdatedAt, Valid: !p.UpdatedAt.IsZero()},
	}
}

// ToPipeline converts a database row to a domain model
func ToPipeline(row *PipelineRow) *models.Pipeline {
	return &models.Pipeline{
		ID:          row.ID.String,
		TenantID:    row.TenantID.String,
		Name:        row.Name.String,
		Description: row.Description.String,
		IsDefault:   row.IsDefault.Bool,
		IsActive:    row.IsActive.Bool,
		Order:       int(row.Order.Int64),
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

// ToPipelines converts a slice of database rows to domain models
func ToPipelines(rows []PipelineRow) []*models.Pipeline {
	pipelines := make([]*models.Pipeline, len(rows))
	for i, row := range rows {
		pipelines[i] = ToPipeline(&row)
	}
	return pipelines
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
