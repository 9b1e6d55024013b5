package models

import "time"

type ActivityType string

const (
	ActivityDealCreated ActivityType = "deal_created"
	ActivityStageChange ActivityType = "stage_change"
)

// Activity is an audit record written alongside deal mutations.
type Activity struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenant_id"`
	DealID    string           `json:"deal_id"`
	UserID    string           `json:"user_id,omitempty"`
	Type      ActivityType     `json:"type"`
	Metadata  ActivityMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
}

// ActivityMetadata carries the from/to stage for stage_change activities.
type ActivityMetadata struct {
	FromStage string `json:"from_stage,omitempty"`
	ToStage   string `json:"to_stage,omitempty"`
}
