package models

// Priority ranks how urgently a recommendation should be acted on.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Recommendation is a rule-derived tuning suggestion. It is recomputed on
// each analysis request and never persisted on its own.
type Recommendation struct {
	ID            string                 `json:"id"`
	Priority      Priority               `json:"priority"`
	Category      string                 `json:"category"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	ConfigChanges map[string]interface{} `json:"config_changes,omitempty"`
}
