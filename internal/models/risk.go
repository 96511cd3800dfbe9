// internal/models/risk.go
package models

// Risk levels produced by the stratification stage.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// RiskAssessment is the output of the risk stratification stage.
type RiskAssessment struct {
	OverallRiskLevel       string            `json:"overall_risk_level"`
	ConfidenceScore        float64           `json:"confidence_score"`
	RiskAssessment         RiskDetail        `json:"risk_assessment"`
	ComplexityMetrics      ComplexityMetrics `json:"complexity_metrics,omitempty"`
	SupportRecommendations []string          `json:"support_recommendations,omitempty"`
	RequiresHumanReview    bool              `json:"requires_human_review,omitempty"`
	FallbackUsed           bool              `json:"fallback_used,omitempty"`
}

type RiskDetail struct {
	RiskReason      string   `json:"risk_reason"`
	PrimaryConcerns []string `json:"primary_concerns"`
	Trending        string   `json:"trending"` // improving | stable | declining
}

type ComplexityMetrics struct {
	MedicationCount           int `json:"medication_count"`
	MedicationComplexityScore int `json:"medication_complexity_score"`
	FollowUpBurdenScore       int `json:"follow_up_burden_score"`
}
