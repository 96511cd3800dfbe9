// internal/models/guide.go
package models

// PatientGuide is the patient-facing plain-language guidance built by the
// communication stage, tuned to the patient's literacy level.
type PatientGuide struct {
	DailyCareChecklist []ChecklistItem   `json:"daily_care_checklist"`
	Medications        []MedicationGuide `json:"medications"`
	WarningSigns       WarningGuide      `json:"warning_signs"`
	KeyMessage         string            `json:"key_message"`
	LiteracyLevelUsed  string            `json:"literacy_level_used"`
	FallbackUsed       bool              `json:"fallback_used,omitempty"`
}

type ChecklistItem struct {
	TimeOfDay string `json:"time_of_day"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
}

type MedicationGuide struct {
	MedicationName string `json:"medication_name"`
	WhatItDoes     string `json:"what_it_does"`
	WhenToTake     string `json:"when_to_take"`
	HowToTake      string `json:"how_to_take"`
}

// WarningGuide buckets warning signs by how fast the patient must act.
type WarningGuide struct {
	EmergencyCall911     []WarningItem `json:"emergency_call_911"`
	CallDoctorSoon       []WarningItem `json:"call_doctor_soon"`
	MentionAtAppointment []WarningItem `json:"mention_at_appointment"`
}

type WarningItem struct {
	SymptomInPlainLanguage string `json:"symptom_in_plain_language"`
	WhatToDo               string `json:"what_to_do"`
	UrgencyLevel           string `json:"urgency_level"`
}
