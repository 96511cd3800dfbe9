// internal/pipeline/adherence.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carepath/internal/agents/adherence"
	"carepath/internal/agents/escalation"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/common/observability"
	"carepath/internal/models"
)

// EscalationNotifier alerts the care team about an executed escalation.
// Delivery is best effort; a failed notification never fails the run.
type EscalationNotifier interface {
	EscalationRaised(ctx context.Context, directive models.EscalationDirective) error
}

// AdherencePipeline scores a new check-in against the stored care plan and
// conditionally runs the escalation decision.
type AdherencePipeline struct {
	monitor    *adherence.Agent
	escalator  *escalation.Agent
	store      *database.Store
	notifier   EscalationNotifier
	obs        *observability.Observability
	log        logger.Logger
	windowDays int

	now func() time.Time
}

func NewAdherencePipeline(
	monitor *adherence.Agent,
	escalator *escalation.Agent,
	store *database.Store,
	notifier EscalationNotifier,
	obs *observability.Observability,
	log logger.Logger,
	windowDays int,
) *AdherencePipeline {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &AdherencePipeline{
		monitor:    monitor,
		escalator:  escalator,
		store:      store,
		notifier:   notifier,
		obs:        obs,
		log:        log.With(map[string]interface{}{"pipeline": "adherence"}),
		windowDays: windowDays,
		now:        time.Now,
	}
}

// MonitorAdherence runs the check-in workflow for one patient.
func (p *AdherencePipeline) MonitorAdherence(ctx context.Context, patientID string, checkIn models.CheckIn) *AdherenceResult {
	log := p.log.With(map[string]interface{}{"patientId": patientID})
	log.Info("starting adherence monitoring", nil)

	loaded, err := p.load(ctx, patientID)
	if err != nil {
		log.Error("load failed", map[string]interface{}{"error": err.Error()})
		return &AdherenceResult{Success: false, StageFailed: StageLoad, Error: err.Error()}
	}

	history := append(loaded.checkIns, checkIn)

	start := p.now()
	assessment, err := p.monitor.Execute(ctx, loaded.carePlan, history)
	if err != nil {
		p.recordStage(ctx, StageAdherence, "failed", p.now().Sub(start))
		log.Error("adherence scoring failed", map[string]interface{}{"error": err.Error()})
		return &AdherenceResult{Success: false, StageFailed: StageAdherence, Error: err.Error(), ErrorKind: failureKind(err)}
	}
	p.recordStage(ctx, StageAdherence, "success", p.now().Sub(start))

	// The check-in is persisted merged with its assessment, so history reads
	// carry the score that was current when the patient checked in.
	checkIn.AdherenceAssessment = assessment
	checkIn.Timestamp = p.now()
	if err := p.store.Append(ctx, database.CheckInsKey(patientID), checkIn); err != nil {
		log.Error("check-in persist failed", map[string]interface{}{"error": err.Error()})
		return &AdherenceResult{Success: false, StageFailed: StageAdherence, Error: err.Error()}
	}

	if !assessment.EscalationRecommended {
		log.Info("no escalation needed", map[string]interface{}{"status": assessment.AdherenceStatus})
		return &AdherenceResult{
			Success:             true,
			AdherenceStatus:     assessment.AdherenceStatus,
			EscalationTriggered: false,
		}
	}

	result := &AdherenceResult{
		Success:         true,
		AdherenceStatus: assessment.AdherenceStatus,
		Errors:          []StageError{},
	}
	p.runEscalation(ctx, patientID, loaded, assessment, result)
	return result
}

type loadedState struct {
	carePlan    *models.CarePlan
	checkIns    []models.CheckIn
	risk        *models.RiskAssessment
	escalations []models.EscalationRecord
}

func (p *AdherencePipeline) load(ctx context.Context, patientID string) (*loadedState, error) {
	var plan models.CarePlan
	found, err := p.store.GetJSON(ctx, database.CarePlanKey(patientID), &plan)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("care plan not found - patient must complete discharge processing first")
	}

	state := &loadedState{carePlan: &plan}

	rawCheckIns, err := p.store.GetRecent(ctx, database.CheckInsKey(patientID), p.windowDays)
	if err != nil {
		return nil, err
	}
	for _, raw := range rawCheckIns {
		var c models.CheckIn
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		state.checkIns = append(state.checkIns, c)
	}

	var risk models.RiskAssessment
	if found, err := p.store.GetJSON(ctx, database.RiskKey(patientID), &risk); err == nil && found {
		state.risk = &risk
	}

	rawEscalations, err := p.store.GetRecent(ctx, database.EscalationsKey(patientID), p.windowDays)
	if err != nil {
		return nil, err
	}
	for _, raw := range rawEscalations {
		var rec models.EscalationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		state.escalations = append(state.escalations, rec)
	}
	return state, nil
}

// runEscalation decides and records the escalation. Any failure here
// defaults to no escalation; never escalate on uncertainty.
func (p *AdherencePipeline) runEscalation(ctx context.Context, patientID string, loaded *loadedState, assessment *models.AdherenceAssessment, result *AdherenceResult) {
	log := p.log.With(map[string]interface{}{"patientId": patientID})

	start := p.now()
	decision, err := p.escalator.Execute(ctx, loaded.risk, assessment, models.PatientContext{PatientID: patientID}, loaded.escalations)
	if err == nil && decision.Decision == models.DecisionEscalate && decision.Directive != nil {
		record := models.EscalationRecord{
			EscalationDirective: *decision.Directive,
			Timestamp:           p.now(),
			Executed:            true,
		}
		err = p.store.Append(ctx, database.EscalationsKey(patientID), record)
		if err == nil {
			p.recordStage(ctx, StageEscalation, "success", p.now().Sub(start))
			log.Warn("escalation triggered", map[string]interface{}{
				"urgency":    decision.Directive.UrgencyLevel,
				"confidence": decision.Directive.Confidence,
			})
			result.EscalationTriggered = true
			result.EscalationDetails = decision.Directive
			p.notify(ctx, *decision.Directive)
			return
		}
	}

	if err != nil {
		p.recordStage(ctx, StageEscalation, "failed", p.now().Sub(start))
		log.Error("escalation decision failed", map[string]interface{}{"error": err.Error()})
		result.Errors = append(result.Errors, StageError{
			Stage:    StageEscalation,
			Severity: SeverityMedium,
			Message:  "Escalation decision failed - defaulting to no escalation",
		})
		return
	}

	p.recordStage(ctx, StageEscalation, "success", p.now().Sub(start))
	log.Info("escalation not warranted", map[string]interface{}{"rationale": decision.Rationale})
}

func (p *AdherencePipeline) notify(ctx context.Context, directive models.EscalationDirective) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.EscalationRaised(ctx, directive); err != nil {
		p.log.Warn("care team notification failed", map[string]interface{}{"error": err.Error()})
	}
}

func (p *AdherencePipeline) recordStage(ctx context.Context, stage, status string, d time.Duration) {
	if p.obs != nil {
		p.obs.RecordStage(ctx, stage, status, d)
	}
}
