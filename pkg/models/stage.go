package models

import "time"

type StageType string

const (
	StageTypeOpen StageType = "OPEN"
	StageTypeWon  StageType = "WON"
	StageTypeLost StageType = "LOST"
)

const DefaultStageColor = "#6B7280"

// Stage is one ordered step within a pipeline. Order is unique within the
// owning pipeline; the set of orders at rest is always the dense sequence
// 0..N-1.
type Stage struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	PipelineID string    `json:"pipeline_id"`
	Name       string    `json:"name"`
	Order      int       `json:"order"`
	Color      string    `json:"color"`
	IsDefault  bool      `json:"is_default"`
	Type       StageType `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsClosed reports whether the stage is terminal (WON or LOST). The board
// forbids inserting a new stage after a terminal one.
func (s *Stage) IsClosed() bool {
	return s.Type == StageTypeWon || s.Type == StageTypeLost
}

// StagePatch is a partial stage update. Nil fields are left untouched.
type StagePatch struct {
	Name  *string    `json:"name,omitempty"`
	Order *int       `json:"order,omitempty"`
	Color *string    `json:"color,omitempty"`
	Type  *StageType `json:"type,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p StagePatch) IsEmpty() bool {
	return p.Name == nil && p.Order == nil && p.Color == nil && p.Type == nil
}

// Apply copies the patch's non-nil fields onto the stage.
func (p StagePatch) Apply(s *Stage) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Type != nil {
		s.Type = *p.Type
	}
}
