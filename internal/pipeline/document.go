// Package pipeline sequences the discharge-document and adherence workflows,
// applying per-stage failure policy: critical stages abort with a typed
// failure envelope, non-critical stages degrade to deterministic fallbacks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carepath/internal/agents/docinterpreter"
	"carepath/internal/agents/patientcomms"
	"carepath/internal/agents/riskstratifier"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/common/observability"
	"carepath/internal/models"
)

const (
	lowExtractionConfidence = 0.5
	lowRiskConfidence       = 0.6
)

// DocumentPipeline runs extraction, risk stratification and patient
// communication over one discharge document, then persists the session and
// the patient's care plan.
type DocumentPipeline struct {
	interpreter *docinterpreter.Agent
	stratifier  *riskstratifier.Agent
	comms       *patientcomms.Agent
	store       *database.Store
	obs         *observability.Observability
	log         logger.Logger

	now          func() time.Time
	newSessionID func() string
}

func NewDocumentPipeline(
	interpreter *docinterpreter.Agent,
	stratifier *riskstratifier.Agent,
	comms *patientcomms.Agent,
	store *database.Store,
	obs *observability.Observability,
	log logger.Logger,
) *DocumentPipeline {
	return &DocumentPipeline{
		interpreter:  interpreter,
		stratifier:   stratifier,
		comms:        comms,
		store:        store,
		obs:          obs,
		log:          log.With(map[string]interface{}{"pipeline": "document"}),
		now:          time.Now,
		newSessionID: newSessionID,
	}
}

// newSessionID is unique per invocation: millisecond timestamp plus a random
// suffix.
func newSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// ProcessDischarge runs the full document workflow. The returned envelope is
// always typed; a false Success carries the failing stage and any partial
// results.
func (p *DocumentPipeline) ProcessDischarge(ctx context.Context, dischargeText string, patient models.PatientContext) *DocumentResult {
	sessionID := p.newSessionID()
	results := &SessionResults{
		SessionID: sessionID,
		Errors:    []StageError{},
	}
	log := p.log.With(map[string]interface{}{"sessionId": sessionID, "patientId": patient.PatientID})
	log.Info("starting discharge document processing", nil)

	// Extraction is the one stage with no fallback: everything downstream
	// consumes its output.
	extraction, stageErr := p.runExtraction(ctx, dischargeText, patient, results)
	if stageErr != nil {
		log.Error("extraction failed, aborting run", map[string]interface{}{"error": stageErr.Error()})
		return &DocumentResult{
			Success:        false,
			StageFailed:    StageExtraction,
			Error:          stageErr.Error(),
			ErrorKind:      failureKind(stageErr),
			Errors:         results.Errors,
			PartialResults: results,
		}
	}
	results.Extraction = extraction

	p.runRiskStratification(ctx, extraction, patient, results)
	p.runCommunication(ctx, extraction, patient, results)

	if err := p.persist(ctx, patient.PatientID, results); err != nil {
		log.Error("persist failed", map[string]interface{}{"error": err.Error()})
		return &DocumentResult{
			Success:        false,
			StageFailed:    StagePersist,
			Error:          err.Error(),
			Errors:         results.Errors,
			PartialResults: results,
		}
	}

	log.Info("discharge document processed", map[string]interface{}{
		"requiresHumanReview": results.RequiresHumanReview,
		"errorCount":          len(results.Errors),
	})
	return &DocumentResult{
		Success:             true,
		SessionID:           sessionID,
		Results:             results,
		RequiresHumanReview: results.RequiresHumanReview,
		Errors:              results.Errors,
	}
}

func (p *DocumentPipeline) runExtraction(ctx context.Context, dischargeText string, patient models.PatientContext, results *SessionResults) (*models.Extraction, error) {
	start := p.now()
	extraction, err := p.interpreter.Execute(ctx, dischargeText, patient)
	if err != nil {
		p.recordStage(ctx, StageExtraction, "failed", p.now().Sub(start))
		return nil, err
	}

	if extraction.OverallConfidence < lowExtractionConfidence {
		results.RequiresHumanReview = true
		results.Errors = append(results.Errors, StageError{
			Stage:    StageExtraction,
			Severity: SeverityHigh,
			Message:  "Low extraction confidence - manual review recommended",
		})
		// Low confidence alone is tolerated; an empty extraction is not.
		if extraction.Empty() {
			p.recordStage(ctx, StageExtraction, "failed", p.now().Sub(start))
			return nil, fmt.Errorf("no medications or follow-ups extracted")
		}
	}
	if extraction.RequiresHumanReview {
		results.RequiresHumanReview = true
	}

	p.recordStage(ctx, StageExtraction, "success", p.now().Sub(start))
	return extraction, nil
}

func (p *DocumentPipeline) runRiskStratification(ctx context.Context, extraction *models.Extraction, patient models.PatientContext, results *SessionResults) {
	start := p.now()
	assessment, err := p.stratifier.Execute(ctx, extraction, patient)
	if err != nil {
		p.log.Warn("risk stratification failed, using fallback", map[string]interface{}{"error": err.Error()})
		p.recordStage(ctx, StageRisk, "fallback", p.now().Sub(start))
		results.RiskAssessment = fallbackRiskAssessment(extraction)
		results.RequiresHumanReview = true
		results.Errors = append(results.Errors, StageError{
			Stage:    StageRisk,
			Severity: SeverityMedium,
			Message:  "Risk stratification failed - using fallback",
		})
		return
	}

	results.RiskAssessment = assessment
	if assessment.ConfidenceScore < lowRiskConfidence {
		results.RequiresHumanReview = true
		results.Errors = append(results.Errors, StageError{
			Stage:    StageRisk,
			Severity: SeverityMedium,
			Message:  "Risk assessment has low confidence",
		})
	}
	p.recordStage(ctx, StageRisk, "success", p.now().Sub(start))
}

func (p *DocumentPipeline) runCommunication(ctx context.Context, extraction *models.Extraction, patient models.PatientContext, results *SessionResults) {
	literacy := patient.LiteracyLevel
	if literacy == "" {
		literacy = models.LiteracyMedium
	}

	start := p.now()
	guide, err := p.comms.Execute(ctx, extraction, literacy, patient)
	if err != nil {
		p.log.Warn("patient communication failed, using fallback", map[string]interface{}{"error": err.Error()})
		p.recordStage(ctx, StageCommunication, "fallback", p.now().Sub(start))
		results.PatientGuide = fallbackPatientGuide(extraction)
		results.RequiresHumanReview = true
		results.Errors = append(results.Errors, StageError{
			Stage:    StageCommunication,
			Severity: SeverityMedium,
			Message:  "Patient communication failed - using simplified fallback",
		})
		return
	}

	results.PatientGuide = guide
	p.recordStage(ctx, StageCommunication, "success", p.now().Sub(start))
}

// persist writes the session record, overwrites the patient's care plan and
// caches the risk assessment for the adherence pipeline.
func (p *DocumentPipeline) persist(ctx context.Context, patientID string, results *SessionResults) error {
	if err := p.store.SetJSON(ctx, database.SessionKey(results.SessionID), results); err != nil {
		return err
	}

	plan := models.CarePlan{
		Medications:  results.Extraction.Medications,
		Appointments: results.Extraction.FollowUpInstructions,
		Restrictions: results.Extraction.ActivityRestrictions,
		CreatedAt:    p.now(),
	}
	if err := p.store.SetJSON(ctx, database.CarePlanKey(patientID), plan); err != nil {
		return err
	}

	if results.RiskAssessment != nil {
		if err := p.store.SetJSON(ctx, database.RiskKey(patientID), results.RiskAssessment); err != nil {
			return err
		}
	}
	return nil
}

func (p *DocumentPipeline) recordStage(ctx context.Context, stage, status string, d time.Duration) {
	if p.obs != nil {
		p.obs.RecordStage(ctx, stage, status, d)
	}
}
