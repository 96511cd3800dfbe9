// Package riskstratifier scores the complexity of an extracted care plan
// and assigns an overall readmission risk level.
package riskstratifier

import (
	"context"
	"encoding/json"
	"fmt"

	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
)

// CallerLabel identifies this agent on inference requests.
const CallerLabel = "risk-stratifier"

const temperature = 0.2

const systemPrompt = `You are a Risk Stratification specialist for post-discharge care.

Given the structured extraction of a discharge summary and the patient's context,
assess the complexity of the care plan and assign an overall risk level of LOW,
MEDIUM or HIGH. Consider medication burden, follow-up burden, warning sign
severity and patient factors such as chronic conditions and living situation.`

// Input is the structured payload carried inside the user prompt.
type Input struct {
	Extraction *models.Extraction    `json:"extraction"`
	Patient    models.PatientContext `json:"patient_context"`
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

// Execute assesses care-plan complexity for the given extraction.
func (a *Agent) Execute(ctx context.Context, extraction *models.Extraction, patient models.PatientContext) (*models.RiskAssessment, error) {
	userPrompt, err := inference.EncodeInput(
		"## TASK\nAssess the post-discharge risk for the care plan described in the input document. Return valid JSON with overall_risk_level, confidence_score, risk_assessment, complexity_metrics and support_recommendations.",
		Input{Extraction: extraction, Patient: patient},
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

	var assessment models.RiskAssessment
	if err := json.Unmarshal(result.Data, &assessment); err != nil {
		return nil, fmt.Errorf("decode risk response: %w", err)
	}

	a.log.Info("risk assessment complete", map[string]interface{}{
		"riskLevel":  assessment.OverallRiskLevel,
		"confidence": assessment.ConfidenceScore,
	})
	return &assessment, nil
}

// StubResponder reproduces the deterministic stratification heuristic:
// risk follows medication and follow-up counts.
func StubResponder(req *inference.Request) (json.RawMessage, error) {
	var in Input
	if err := inference.DecodeInput(req.UserPrompt, &in); err != nil {
		return nil, err
	}

	medCount := 0
	followUpCount := 0
	if in.Extraction != nil {
		medCount = len(in.Extraction.Medications)
		followUpCount = len(in.Extraction.FollowUpInstructions)
	}

	riskLevel := models.RiskHigh
	switch {
	case medCount <= 3 && followUpCount <= 1:
		riskLevel = models.RiskLow
	case medCount <= 7 && followUpCount <= 3:
		riskLevel = models.RiskMedium
	}

	medComplexity := 5
	if medCount > 5 {
		medComplexity = 8
	}
	followUpBurden := 4
	if followUpCount > 2 {
		followUpBurden = 7
	}

	assessment := models.RiskAssessment{
		OverallRiskLevel: riskLevel,
		ConfidenceScore:  0.85,
		RiskAssessment: models.RiskDetail{
			RiskReason: fmt.Sprintf("Care plan complexity assessed based on %d medications and %d follow-up actions", medCount, followUpCount),
			PrimaryConcerns: []string{
				fmt.Sprintf("Managing %d medications", medCount),
				fmt.Sprintf("%d follow-up appointments", followUpCount),
			},
			Trending: "stable",
		},
		ComplexityMetrics: models.ComplexityMetrics{
			MedicationCount:           medCount,
			MedicationComplexityScore: medComplexity,
			FollowUpBurdenScore:       followUpBurden,
		},
		SupportRecommendations: []string{},
	}
	return json.Marshal(assessment)
}
