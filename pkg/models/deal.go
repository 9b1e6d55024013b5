package models

import "time"

type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// TaskSummary is the lightweight task projection carried on a deal, used by
// the board for the overdue indicator.
type TaskSummary struct {
	Status   TaskStatus `json:"status"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// IsOverdue reports whether the task is open with a deadline in the past.
func (t TaskSummary) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusDone && t.Deadline != nil && t.Deadline.Before(now)
}

// Deal is the primary business record tracked through a pipeline's stages.
// StageID always references a stage of the deal's own pipeline.
type Deal struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenant_id"`
	Title           string        `json:"title"`
	Amount          float64       `json:"amount"`
	StageID         string        `json:"stage_id"`
	AssignedTo      string        `json:"assigned_to,omitempty"`
	ContactID       string        `json:"contact_id,omitempty"`
	CompanyID       string        `json:"company_id,omitempty"`
	Tags            []string      `json:"tags,omitempty"`
	Tasks           []TaskSummary `json:"tasks,omitempty"`
	ExpectedCloseAt *time.Time    `json:"expected_close_at,omitempty"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// DealPatch is a partial deal update. Nil fields are left untouched.
type DealPatch struct {
	Title           *string        `json:"title,omitempty"`
	Amount          *float64       `json:"amount,omitempty"`
	StageID         *string        `json:"stage_id,omitempty"`
	AssignedTo      *string        `json:"assigned_to,omitempty"`
	ContactID       *string        `json:"contact_id,omitempty"`
	CompanyID       *string        `json:"company_id,omitempty"`
	Tags            *[]string      `json:"tags,omitempty"`
	Tasks           *[]TaskSummary `json:"tasks,omitempty"`
	ExpectedCloseAt *time.Time     `json:"expected_close_at,omitempty"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p DealPatch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.StageID == nil &&
		p.AssignedTo == nil && p.ContactID == nil && p.CompanyID == nil &&
		p.Tags == nil && p.Tasks == nil && p.ExpectedCloseAt == nil && p.ClosedAt == nil
}

// Apply copies the patch's non-nil fields onto the deal.
func (p DealPatch) Apply(d *Deal) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.StageID != nil {
		d.StageID = *p.StageID
	}
	if p.AssignedTo != nil {
		d.AssignedTo = *p.AssignedTo
	}
	if p.ContactID != nil {
		d.ContactID = *p.ContactID
	}
	if p.CompanyID != nil {
		d.CompanyID = *p.CompanyID
	}
	if p.Tags != nil {
		d.Tags = *p.Tags
	}
	if p.Tasks != nil {
		d.Tasks = *p.Tasks
	}
	if p.ExpectedCloseAt != nil {
		d.ExpectedCloseAt = p.ExpectedCloseAt
	}
	if p.ClosedAt != nil {
		d.ClosedAt = p.ClosedAt
	}
}
