// Package adherence scores a patient's compliance with their care plan
// from their recent check-in history.
package adherence

import (
	"context"
	"encoding/json"
	"fmt"

	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
)

// CallerLabel identifies this agent on inference requests.
const CallerLabel = "adherence-monitor"

const temperature = 0.2

const expectedCheckIns = 7

const systemPrompt = `You are an Adherence Monitoring specialist for post-discharge care.

Given a patient's care plan and their recent daily check-in history, score
medication adherence, measure engagement, classify the patient as ON_TRACK,
AT_RISK or OFF_TRACK, and recommend whether the care team should be alerted.`

// Input is the structured payload carried inside the user prompt.
type Input struct {
	CarePlan       *models.CarePlan `json:"care_plan"`
	CheckInHistory []models.CheckIn `json:"check_in_history"`
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

// Execute scores adherence for the latest check-in against the care plan.
func (a *Agent) Execute(ctx context.Context, plan *models.CarePlan, history []models.CheckIn) (*models.AdherenceAssessment, error) {
	userPrompt, err := inference.EncodeInput(
		"## TASK\nAssess the patient's adherence from the input document. Return valid JSON with adherence_status, medication_adherence, engagement, risk_assessment and escalation_recommended.",
		Input{CarePlan: plan, CheckInHistory: history},
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

	var assessment models.AdherenceAssessment
	if err := json.Unmarshal(result.Data, &assessment); err != nil {
		return nil, fmt.Errorf("decode adherence response: %w", err)
	}

	a.log.Info("adherence assessed", map[string]interface{}{
		"status":                assessment.AdherenceStatus,
		"overallPercentage":     assessment.MedicationAdherence.OverallPercentage,
		"escalationRecommended": assessment.EscalationRecommended,
	})
	return &assessment, nil
}

// StubResponder reproduces the deterministic scoring heuristic: adherence is
// the latest check-in's taken count over the plan's medication count.
func StubResponder(req *inference.Request) (json.RawMessage, error) {
	var in Input
	if err := inference.DecodeInput(req.UserPrompt, &in); err != nil {
		return nil, err
	}
	if len(in.CheckInHistory) == 0 {
		return nil, fmt.Errorf("adherence scoring requires at least one check-in")
	}

	latest := in.CheckInHistory[len(in.CheckInHistory)-1]
	taken := latest.MedicationsTaken()
	expected := 1
	if in.CarePlan != nil && len(in.CarePlan.Medications) > 0 {
		expected = len(in.CarePlan.Medications)
	}
	percentage := float64(taken) / float64(expected) * 100

	status := models.StatusOffTrack
	switch {
	case percentage >= 90:
		status = models.StatusOnTrack
	case percentage >= 70:
		status = models.StatusAtRisk
	}

	assessment := models.AdherenceAssessment{
		AdherenceStatus: status,
		MedicationAdherence: models.MedicationAdherence{
			OverallPercentage:      percentage,
			CriticalMedsPercentage: percentage,
		},
		Engagement: models.Engagement{
			CheckinsExpected:     expectedCheckIns,
			CheckinsCompleted:    len(in.CheckInHistory),
			EngagementPercentage: float64(len(in.CheckInHistory)) / expectedCheckIns * 100,
			DisengagementConcern: false,
		},
		RiskAssessment: models.RiskDetail{
			RiskReason:      fmt.Sprintf("Adherence at %.1f%%", percentage),
			PrimaryConcerns: []string{},
			Trending:        "stable",
		},
		EscalationRecommended: status == models.StatusOffTrack,
	}
	return json.Marshal(assessment)
}
