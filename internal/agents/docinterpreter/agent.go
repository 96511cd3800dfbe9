// Package docinterpreter extracts actionable post-discharge instructions
// from raw discharge summary text.
package docinterpreter

import (
	"context"
	"encoding/json"
	"fmt"

	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
)

// CallerLabel identifies this agent on inference requests.
const CallerLabel = "doc-interpreter"

const temperature = 0.1

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

// Execute interprets a discharge summary into a structured extraction.
func (a *Agent) Execute(ctx context.Context, dischargeText string, patient models.PatientContext) (*models.Extraction, error) {
	req := &inference.Request{
		SystemPrompt:   systemPrompt,
		UserPrompt:     buildUserPrompt(dischargeText, patient),
		Temperature:    temperature,
		ResponseSchema: responseSchema,
		CallerLabel:    CallerLabel,
	}

	result, err := a.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	var extraction models.Extraction
	if err := json.Unmarshal(result.Data, &extraction); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	a.log.Info("extraction complete", map[string]interface{}{
		"medications": len(extraction.Medications),
		"followUps":   len(extraction.FollowUpInstructions),
		"confidence":  extraction.OverallConfidence,
	})
	return &extraction, nil
}

func buildUserPrompt(dischargeText string, patient models.PatientContext) string {
	name := "Not provided"
	if patient.Name != "" {
		name = "Patient Name: " + patient.Name
	}
	age := "Not provided"
	if patient.Age > 0 {
		age = fmt.Sprintf("Patient Age: %d", patient.Age)
	}

	return fmt.Sprintf(`## TASK
Extract actionable post-discharge instructions from the following medical discharge summary.

## DISCHARGE SUMMARY TEXT
`+"```"+`
%s
`+"```"+`

## PATIENT CONTEXT (optional)
%s
%s

## EXTRACTION INSTRUCTIONS
1. Focus ONLY on "Discharge Medications", "Follow-up Instructions", "Warning Signs", "Activity Restrictions", and "Diet" sections
2. Ignore all historical medical information
3. Extract medications exactly as written
4. For each warning sign, extract the exact symptom description
5. Assign confidence scores based on clarity

## OUTPUT
Return valid JSON matching the provided output schema.`, dischargeText, name, age)
}
