// internal/models/extraction.go
package models

// Extraction is the structured output of the document interpretation stage:
// the actionable post-discharge instructions pulled from a discharge summary.
type Extraction struct {
	Medications          []Medication          `json:"medications"`
	FollowUpInstructions []FollowUp            `json:"follow_up_instructions"`
	WarningSigns         []WarningSign         `json:"warning_signs"`
	ActivityRestrictions []ActivityRestriction `json:"activity_restrictions"`
	OverallConfidence    float64               `json:"overall_confidence"`
	RequiresHumanReview  bool                  `json:"requires_human_review"`
}

// Empty reports whether nothing actionable was extracted at all.
func (e *Extraction) Empty() bool {
	return len(e.Medications) == 0 && len(e.FollowUpInstructions) == 0
}

type Medication struct {
	Name       string `json:"name"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Route      string `json:"route,omitempty"`
	IsCritical bool   `json:"is_critical,omitempty"`
	Confidence string `json:"confidence,omitempty"` // high | medium | low
}

type FollowUp struct {
	Specialty  string `json:"specialty"`
	Timeframe  string `json:"timeframe"`
	Purpose    string `json:"purpose,omitempty"`
	IsCritical bool   `json:"is_critical,omitempty"`
}

// Warning sign severities.
const (
	SeverityEmergency = "emergency"
	SeverityUrgent    = "urgent"
	SeverityRoutine   = "routine"
)

type WarningSign struct {
	Symptom  string `json:"symptom"`
	Severity string `json:"severity"`
	Action   string `json:"action,omitempty"`
}

type ActivityRestriction struct {
	Restriction      string `json:"restriction"`
	Duration         string `json:"duration,omitempty"`
	IsSafetyCritical bool   `json:"is_safety_critical,omitempty"`
}
