// internal/pipeline/models.go
package pipeline

import (
	cperrors "carepath/internal/common/errors"
	"carepath/internal/models"
)

// Stage identifiers used in result envelopes and error entries.
const (
	StageExtraction    = "stage1"
	StageRisk          = "stage2"
	StageCommunication = "stage3"
	StageAdherence     = "stage4"
	StageEscalation    = "stage5"
	StageLoad          = "load"
	StagePersist       = "persist"
)

// Error severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// StageError is a visible but non-fatal problem recorded during a pipeline
// run.
type StageError struct {
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SessionResults aggregates the per-stage outputs of one document run. It is
// persisted verbatim under the session key.
type SessionResults struct {
	SessionID           string                 `json:"session_id"`
	Extraction          *models.Extraction     `json:"extraction"`
	RiskAssessment      *models.RiskAssessment `json:"risk_assessment"`
	PatientGuide        *models.PatientGuide   `json:"patient_guide"`
	RequiresHumanReview bool                   `json:"requires_human_review"`
	Errors              []StageError           `json:"errors"`
}

// DocumentResult is the envelope returned by the document pipeline. It is
// always a typed value, success or not.
type DocumentResult struct {
	Success             bool            `json:"success"`
	SessionID           string          `json:"session_id,omitempty"`
	Results             *SessionResults `json:"results,omitempty"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	Errors              []StageError    `json:"errors"`

	// Failure fields, set only when Success is false. ErrorKind carries the
	// classified failure kind when the cause was an inference failure, so
	// the HTTP layer can distinguish "try again later" from a server fault.
	StageFailed    string          `json:"stage_failed,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	PartialResults *SessionResults `json:"partial_results,omitempty"`
}

// AdherenceResult is the envelope returned by the adherence pipeline.
type AdherenceResult struct {
	Success             bool                        `json:"success"`
	AdherenceStatus     string                      `json:"adherence_status,omitempty"`
	EscalationTriggered bool                        `json:"escalation_triggered"`
	EscalationDetails   *models.EscalationDirective `json:"escalation_details,omitempty"`
	Errors              []StageError                `json:"errors,omitempty"`

	// Failure fields, set only when Success is false.
	StageFailed string `json:"stage_failed,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// failureKind extracts the classified kind when err is an inference
// failure; other causes yield an empty kind.
func failureKind(err error) string {
	if infErr, ok := cperrors.AsInference(err); ok {
		return string(infErr.Kind)
	}
	return ""
}
