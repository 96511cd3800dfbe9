// Package escalation decides whether an off-track patient warrants a
// care-team alert.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"

	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
)

// CallerLabel identifies this agent on inference requests.
const CallerLabel = "escalation"

const temperature = 0.1

const systemPrompt = `You are an Escalation Decision specialist for post-discharge care.

Given a patient's adherence assessment, their risk profile and any prior
escalations, decide whether the care team must be alerted now. Escalate only
when the evidence justifies interrupting a human; otherwise explain why not.`

// Input is the structured payload carried inside the user prompt.
type Input struct {
	RiskAssessment    *models.RiskAssessment      `json:"risk_assessment,omitempty"`
	Adherence         *models.AdherenceAssessment `json:"adherence"`
	Patient           models.PatientContext       `json:"patient_context"`
	EscalationHistory []models.EscalationRecord   `json:"escalation_history,omitempty"`
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

// Execute decides whether to escalate the patient to the care team.
func (a *Agent) Execute(ctx context.Context, risk *models.RiskAssessment, assessment *models.AdherenceAssessment, patient models.PatientContext, history []models.EscalationRecord) (*models.EscalationDecision, error) {
	userPrompt, err := inference.EncodeInput(
		"## TASK\nDecide whether to escalate the patient described in the input document. Return valid JSON with decision, and either a directive (when escalating) or a rationale.",
		Input{RiskAssessment: risk, Adherence: assessment, Patient: patient, EscalationHistory: history},
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

	var decision models.EscalationDecision
	if err := json.Unmarshal(result.Data, &decision); err != nil {
		return nil, fmt.Errorf("decode escalation response: %w", err)
	}

	a.log.Info("escalation decided", map[string]interface{}{
		"decision": decision.Decision,
	})
	return &decision, nil
}

// StubResponder escalates exactly when the adherence status is OFF_TRACK.
func StubResponder(req *inference.Request) (json.RawMessage, error) {
	var in Input
	if err := inference.DecodeInput(req.UserPrompt, &in); err != nil {
		return nil, err
	}
	if in.Adherence == nil {
		return nil, fmt.Errorf("escalation decision requires an adherence assessment")
	}

	if in.Adherence.AdherenceStatus == models.StatusOffTrack {
		return json.Marshal(models.EscalationDecision{
			Decision: models.DecisionEscalate,
			Directive: &models.EscalationDirective{
				PatientID:       in.Patient.PatientID,
				Reason:          "Patient adherence is off track and requires attention",
				UrgencyLevel:    models.UrgencyMedium,
				Confidence:      0.8,
				PrimaryConcerns: []string{"Low medication adherence"},
			},
		})
	}
	return json.Marshal(models.EscalationDecision{
		Decision:  models.DecisionNoEscalation,
		Rationale: "Patient adherence is acceptable, no escalation needed",
	})
}
