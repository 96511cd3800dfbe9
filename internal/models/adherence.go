// internal/models/adherence.go
package models

import "time"

// Adherence statuses, thresholded on the medication adherence percentage.
const (
	StatusOnTrack  = "ON_TRACK"
	StatusAtRisk   = "AT_RISK"
	StatusOffTrack = "OFF_TRACK"
)

// CheckIn is a patient's self-reported daily record. Check-ins are
// append-only per patient; AdherenceAssessment is filled in by the
// monitoring stage before the record is persisted.
type CheckIn struct {
	Date                string               `json:"date"`
	Responded           bool                 `json:"responded"`
	Medications         []MedicationCheck    `json:"medications"`
	Appointments        []AppointmentCheck   `json:"appointments,omitempty"`
	Restrictions        []RestrictionCheck   `json:"restrictions,omitempty"`
	PatientNotes        string               `json:"patient_notes,omitempty"`
	Timestamp           time.Time            `json:"timestamp,omitempty"`
	AdherenceAssessment *AdherenceAssessment `json:"adherence_assessment,omitempty"`
}

// MedicationsTaken counts medications reported as taken in this check-in.
func (c *CheckIn) MedicationsTaken() int {
	n := 0
	for _, m := range c.Medications {
		if m.Taken {
			n++
		}
	}
	return n
}

type MedicationCheck struct {
	Name  string `json:"name"`
	Taken bool   `json:"taken"`
}

type AppointmentCheck struct {
	Specialty string `json:"specialty"`
	Scheduled bool   `json:"scheduled"`
}

type RestrictionCheck struct {
	Restriction string `json:"restriction"`
	Followed    bool   `json:"followed"`
}

// AdherenceAssessment is the output of the adherence monitoring stage.
type AdherenceAssessment struct {
	AdherenceStatus       string              `json:"adherence_status"`
	MedicationAdherence   MedicationAdherence `json:"medication_adherence"`
	Engagement            Engagement          `json:"engagement"`
	PatternsDetected      []string            `json:"patterns_detected,omitempty"`
	MissedActions         []string            `json:"missed_actions,omitempty"`
	RiskAssessment        RiskDetail          `json:"risk_assessment"`
	EscalationRecommended bool                `json:"escalation_recommended"`
}

type MedicationAdherence struct {
	OverallPercentage      float64 `json:"overall_percentage"`
	CriticalMedsPercentage float64 `json:"critical_meds_percentage"`
}

type Engagement struct {
	CheckinsExpected     int     `json:"checkins_expected"`
	CheckinsCompleted    int     `json:"checkins_completed"`
	EngagementPercentage float64 `json:"engagement_percentage"`
	DisengagementConcern bool    `json:"disengagement_concern"`
}
