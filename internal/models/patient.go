// internal/models/patient.go
package models

import "time"

// Literacy levels used when generating patient-facing guidance.
const (
	LiteracyLow    = "low"
	LiteracyMedium = "medium"
	LiteracyHigh   = "high"
)

// Patient is the stored patient record.
type Patient struct {
	PatientID            string    `json:"patient_id"`
	Name                 string    `json:"name"`
	Age                  int       `json:"age,omitempty"`
	HasChronicConditions bool      `json:"has_chronic_conditions"`
	LiteracyLevel        string    `json:"literacy_level"`
	CreatedAt            time.Time `json:"created_at"`
}

// PatientContext is the per-request context threaded through the document
// pipeline. A zero value is usable; LiteracyLevel defaults downstream.
type PatientContext struct {
	PatientID            string `json:"patient_id"`
	Name                 string `json:"name,omitempty"`
	Age                  int    `json:"age,omitempty"`
	HasChronicConditions bool   `json:"has_chronic_conditions,omitempty"`
	LiteracyLevel        string `json:"literacy_level,omitempty"`
	LivesAlone           bool   `json:"lives_alone,omitempty"`
	HasCaregiver         bool   `json:"has_caregiver,omitempty"`
}
