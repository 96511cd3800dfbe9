// internal/models/careplan.go
package models

import "time"

// CarePlan is derived from a successful extraction and overwritten on every
// reprocessing of the patient's discharge document. It is the input contract
// for the adherence pipeline.
type CarePlan struct {
	Medications  []Medication          `json:"medications"`
	Appointments []FollowUp            `json:"appointments"`
	Restrictions []ActivityRestriction `json:"restrictions"`
	CreatedAt    time.Time             `json:"created_at"`
}
