package models

import "time"

// Pipeline is a named, ordered sales process consisting of stages.
type Pipeline struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	Order       int       `json:"order"`
	Stages      []*Stage  `json:"stages"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StageOrder pairs a stage ID with its target order in a bulk reorder.
type StageOrder struct {
	ID    string `json:"id" validate:"required"`
	Order int    `json:"order" validate:"gte=0"`
}
