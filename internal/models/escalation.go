// internal/models/escalation.go
package models

import "time"

// Escalation decisions.
const (
	DecisionEscalate     = "ESCALATE"
	DecisionNoEscalation = "NO_ESCALATION"
)

// Urgency levels carried on an escalation directive.
const (
	UrgencyLow    = "LOW"
	UrgencyMedium = "MEDIUM"
	UrgencyHigh   = "HIGH"
)

// EscalationDecision is the output of the escalation stage.
type EscalationDecision struct {
	Decision  string               `json:"decision"`
	Directive *EscalationDirective `json:"directive,omitempty"`
	Rationale string               `json:"rationale,omitempty"`
}

// EscalationDirective instructs that a human caregiver be notified.
type EscalationDirective struct {
	PatientID       string   `json:"patient_id"`
	Reason          string   `json:"reason"`
	UrgencyLevel    string   `json:"urgency_level"`
	Confidence      float64  `json:"confidence"`
	PrimaryConcerns []string `json:"primary_concerns"`
}

// EscalationRecord is the append-only persisted form of an executed (or
// declined) escalation.
type EscalationRecord struct {
	EscalationDirective
	Timestamp time.Time `json:"timestamp"`
	Executed  bool      `json:"executed"`
}
