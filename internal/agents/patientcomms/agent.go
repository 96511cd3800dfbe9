// Package patientcomms turns a structured extraction into plain-language
// guidance tuned to the patient's literacy level.
package patientcomms

import (
	"context"
	"encoding/json"
	"fmt"

	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
)

// CallerLabel identifies this agent on inference requests.
const CallerLabel = "patient-comms"

const temperature = 0.4

const systemPrompt = `You are a Patient Communication specialist.

Translate structured post-discharge instructions into clear, plain-language
guidance a patient can follow at home. Match the requested literacy level,
avoid medical jargon, and bucket warning signs by how urgently the patient
must act (call 911, call the doctor soon, mention at the next appointment).`

// Input is the structured payload carried inside the user prompt.
type Input struct {
	Extraction    *models.Extraction    `json:"extraction"`
	LiteracyLevel string                `json:"literacy_level"`
	Patient       models.PatientContext `json:"patient_context"`
}

type Agent struct {
	caller inference.Caller
	log    logger.Logger
}

func New(caller inference.Caller, log logger.Logger) *Agent {
	return &Agent{
		caller: caller,
		log:    log.With(map[string]interface{}{"agent": CallerLabel}),
	}
}

// Execute builds the patient-facing guide for an extraction.
func (a *Agent) Execute(ctx context.Context, extraction *models.Extraction, literacyLevel string, patient models.PatientContext) (*models.PatientGuide, error) {
	if literacyLevel == "" {
		literacyLevel = models.LiteracyMedium
	}

	userPrompt, err := inference.EncodeInput(
		"## TASK\nWrite a patient-facing care guide for the care plan in the input document. Return valid JSON with daily_care_checklist, medications, warning_signs, key_message and literacy_level_used.",
		Input{Extraction: extraction, LiteracyLevel: literacyLevel, Patient: patient},
	)
	if err != nil {
		return nil, err
	}

	result, err := a.caller.Call(ctx, &inference.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  temperature,
		CallerLabel:  CallerLabel,
	})
	if err != nil {
		return nil, err
	}

	var guide models.PatientGuide
	if err := json.Unmarshal(result.Data, &guide); err != nil {
		return nil, fmt.Errorf("decode guide response: %w", err)
	}

	a.log.Info("patient guide generated", map[string]interface{}{
		"checklistItems": len(guide.DailyCareChecklist),
		"literacyLevel":  guide.LiteracyLevelUsed,
	})
	return &guide, nil
}

// StubResponder builds a minimal guide straight from the extraction.
func StubResponder(req *inference.Request) (json.RawMessage, error) {
	var in Input
	if err := inference.DecodeInput(req.UserPrompt, &in); err != nil {
		return nil, err
	}

	guide := models.PatientGuide{
		DailyCareChecklist: []models.ChecklistItem{},
		Medications:        []models.MedicationGuide{},
		WarningSigns: models.WarningGuide{
			EmergencyCall911:     []models.WarningItem{},
			CallDoctorSoon:       []models.WarningItem{},
			MentionAtAppointment: []models.WarningItem{},
		},
		KeyMessage:        "Take your medications as prescribed and contact your doctor if you have questions.",
		LiteracyLevelUsed: in.LiteracyLevel,
	}

	if in.Extraction == nil {
		return json.Marshal(guide)
	}

	for _, med := range in.Extraction.Medications {
		guide.DailyCareChecklist = append(guide.DailyCareChecklist, models.ChecklistItem{
			TimeOfDay: "morning",
			Action:    "Take " + med.Name,
		})
		when := med.Frequency
		if when == "" {
			when = "Daily"
		}
		how := med.Route
		if how == "" {
			how = "By mouth"
		}
		guide.Medications = append(guide.Medications, models.MedicationGuide{
			MedicationName: med.Name,
			WhatItDoes:     "Helps treat your condition",
			WhenToTake:     when,
			HowToTake:      how,
		})
	}
	return json.Marshal(guide)
}
