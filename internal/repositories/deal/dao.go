package deal

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

const (
	dealsTable = "deals"
)

// DealRow represents the database row for a deal
type DealRow struct {
	ID              sql.NullString                      `db:"id"`
	TenantID        sql.NullString                      `db:"tenant_id"`
	Title           sql.NullString                      `db:"title"`
	Amount          sql.NullFloat64                     `db:"amount"`
	StageID         sql.NullString                      `db:"stage_id"`
	AssignedTo      sql.NullString                      `db:"assigned_to"`
	ContactID       sql.NullString                      `db:"contact_id"`
	CompanyID       sql.NullString                      `db:"company_id"`
	Tags            database.JSONB[[]string]            `db:"tags"`
	Tasks           database.JSONB[[]models.TaskSummary] `db:"tasks"`
	ExpectedCloseAt sql.NullTime                        `db:"expected_close_at"`
	ClosedAt        sql.NullTime                        `db:"closed_at"`
	CreatedAt       sql.NullTime                        `db:"created_at"`
	UpdatedAt       sql.NullTime                        `db:"updated_at"`
}

var dealStruct = database.NewStruct(new(DealRow))

// FromDeal converts a domain model to a database row
func FromDeal(d *models.Deal) *DealRow {
	row := &DealRow{
		ID:         sql.NullString{String: d.ID, Valid: d.ID != ""},
		TenantID:   sql.NullString{String: d.TenantID, Valid: d.TenantID != ""},
		Title:      sql.NullString{String: d.Title, Valid: d.Title != ""},
		Amount:     sql.NullFloat64{Float64: d.Amount, Valid: true},
		StageID:    sql.NullString{String: d.StageID, Valid: d.StageID != ""},
		AssignedTo: sql.NullString{String: d.AssignedTo, Valid: d.AssignedTo != ""},
		ContactID:  sql.NullString{String: d.ContactID, Valid: d.ContactID != ""},
		CompanyID:  sql.NullString{String: d.CompanyID, Valid: d.CompanyID != ""},
		Tags:       database.JSONB[[]string]{Data: d.Tags},
		Tasks:      database.JSONB[[]models.TaskSummary]{Data: d.Tasks},
		CreatedAt:  sql.NullTime{Time: d.CreatedAt, Valid: !d.CreatedAt.IsZero()},
		UpdatedAt:  sql.NullTime{Time: d.UpdatedAt, Valid: !d.UpdatedAt.IsZero()},
	}
	if d.ExpectedCloseAt != nil {
		row.ExpectedCloseAt = sql.NullTime{Time: *d.ExpectedCloseAt, Valid: true}
	}
	if d.ClosedAt != nil {
		row.ClosedAt = sql.NullTime{Time: *d.ClosedAt, Valid: true}
	}
	return row
}

// ToDeal converts a database row to a domain model
func ToDeal(row *DealRow) *models.Deal {
	d := &models.Deal{
		ID:         row.ID.String,
		TenantID:   row.TenantID.String,
		Title:      row.Title.String,
		Amount:     row.Amount.Float64,
		StageID:    row.StageID.String,
		AssignedTo: row.AssignedTo.String,
		ContactID:  row.ContactID.String,
		CompanyID:  row.CompanyID.String,
		Tags:       row.Tags.Data,
		Tasks:      row.Tasks.Data,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
	if row.ExpectedCloseAt.Valid {
		t := row.ExpectedCloseAt.Time
		d.ExpectedCloseAt = &t
	}
	if row.ClosedAt.Valid {
		t := row.ClosedAt.Time
		d.ClosedAt = &t
	}
	return d
}

// ToDeals converts a slice of database rows to domain models
func ToDeals(rows []DealRow) []*models.Deal {
	deals := make([]*models.Deal, len(rows))
	for i, row := range rows {
		deals[i] = ToDeal(&row)
	}
	return deals
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
