// internal/pipeline/fallback.go
package pipeline

import (
	"fmt"

	"carepath/internal/models"
)

// fallbackRiskAssessment grades risk from medication and follow-up counts
// alone. Used when the stratification stage fails.
func fallbackRiskAssessment(extraction *models.Extraction) *models.RiskAssessment {
	medCount := len(extraction.Medications)
	followUpCount := len(extraction.FollowUpInstructions)

	riskLevel := models.RiskHigh
	switch {
	case medCount <= 3 && followUpCount <= 1:
		riskLevel = models.RiskLow
	case medCount <= 7 && followUpCount <= 3:
		riskLevel = models.RiskMedium
	}

	return &models.RiskAssessment{
		OverallRiskLevel: riskLevel,
		ConfidenceScore:  0.4,
		RiskAssessment: models.RiskDetail{
			RiskReason: "Fallback heuristic-based assessment",
			PrimaryConcerns: []string{
				fmt.Sprintf("%d medications", medCount),
				fmt.Sprintf("%d follow-ups", followUpCount),
			},
			Trending: "stable",
		},
		RequiresHumanReview: true,
		FallbackUsed:        true,
	}
}

// fallbackPatientGuide builds a minimal guide straight from the extraction.
// Used when the communication stage fails.
func fallbackPatientGuide(extraction *models.Extraction) *models.PatientGuide {
	guide := &models.PatientGuide{
		DailyCareChecklist: []models.ChecklistItem{},
		Medications:        []models.MedicationGuide{},
		WarningSigns: models.WarningGuide{
			EmergencyCall911:     []models.WarningItem{},
			CallDoctorSoon:       []models.WarningItem{},
			MentionAtAppointment: []models.WarningItem{},
		},
		KeyMessage:        "Follow your discharge instructions. Contact your doctor with questions.",
		LiteracyLevelUsed: models.LiteracyMedium,
		FallbackUsed:      true,
	}

	for _, med := range extraction.Medications {
		guide.DailyCareChecklist = append(guide.DailyCareChecklist, models.ChecklistItem{
			TimeOfDay: "morning",
			Action:    fmt.Sprintf("Take %s %s", med.Name, med.Dosage),
			Details:   med.Frequency,
		})
		guide.Medications = append(guide.Medications, models.MedicationGuide{
			MedicationName: med.Name,
			WhatItDoes:     "Consult your doctor for details",
			WhenToTake:     med.Frequency,
			HowToTake:      med.Route,
		})
	}

	for _, ws := range extraction.WarningSigns {
		if ws.Severity != models.SeverityEmergency {
			continue
		}
		guide.WarningSigns.EmergencyCall911 = append(guide.WarningSigns.EmergencyCall911, models.WarningItem{
			SymptomInPlainLanguage: ws.Symptom,
			WhatToDo:               ws.Action,
			UrgencyLevel:           "emergency_911",
		})
	}
	return guide
}
