// internal/pipeline/document_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"carepath/internal/agents/docinterpreter"
	"carepath/internal/agents/patientcomms"
	"carepath/internal/agents/riskstratifier"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *database.Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return database.NewFromClient(client)
}

// extractionResponder replays a fixed extraction for the interpreter label.
func extractionResponder(e *models.Extraction) inference.Responder {
	return func(*inference.Request) (json.RawMessage, error) {
		return json.Marshal(e)
	}
}

func failingResponder(msg string) inference.Responder {
	return func(*inference.Request) (json.RawMessage, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func testExtraction(meds, followUps int, confidence float64) *models.Extraction {
	e := &models.Extraction{
		OverallConfidence:    confidence,
		FollowUpInstructions: []models.FollowUp{},
		Medications:          []models.Medication{},
		WarningSigns: []models.WarningSign{
			{Symptom: "chest pain", Severity: models.SeverityEmergency, Action: "Call 911"},
			{Symptom: "mild swelling", Severity: models.SeverityRoutine},
		},
	}
	for i := 0; i < meds; i++ {
		e.Medications = append(e.Medications, models.Medication{
			Name:      fmt.Sprintf("Med%d", i+1),
			Dosage:    "10mg",
			Frequency: "daily",
			Route:     "oral",
		})
	}
	for i := 0; i < followUps; i++ {
		e.FollowUpInstructions = append(e.FollowUpInstructions, models.FollowUp{
			Specialty: fmt.Sprintf("Specialty%d", i+1),
			Timeframe: "7 days",
		})
	}
	return e
}

func newDocumentPipeline(t *testing.T, stub *inference.Stub, store *database.Store) *DocumentPipeline {
	log := logger.NewTestLogger(t)
	return NewDocumentPipeline(
		docinterpreter.New(stub, log),
		riskstratifier.New(stub, log),
		patientcomms.New(stub, log),
		store, nil, log,
	)
}

func newDefaultStub(extraction *models.Extraction) *inference.Stub {
	stub := inference.NewStub()
	stub.Register(docinterpreter.CallerLabel, extractionResponder(extraction))
	stub.Register(riskstratifier.CallerLabel, riskstratifier.StubResponder)
	stub.Register(patientcomms.CallerLabel, patientcomms.StubResponder)
	return stub
}

func TestDocumentPipelineCleanRun(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(4, 2, 0.9))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "discharge text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.NotEmpty(t, result.SessionID)
	assert.False(t, result.RequiresHumanReview)
	assert.Len(t, result.Errors, 0)

	// Risk comes from the complexity heuristic: 4 meds and 2 follow-ups.
	require.NotNil(t, result.Results.RiskAssessment)
	assert.Equal(t, models.RiskMedium, result.Results.RiskAssessment.OverallRiskLevel)
	assert.False(t, result.Results.RiskAssessment.FallbackUsed)

	require.NotNil(t, result.Results.PatientGuide)
	assert.Len(t, result.Results.PatientGuide.Medications, 4)

	// Session and care plan are persisted.
	var session SessionResults
	found, err := store.GetJSON(context.Background(), database.SessionKey(result.SessionID), &session)
	require.NoError(t, err)
	assert.True(t, found)

	var plan models.CarePlan
	found, err = store.GetJSON(context.Background(), database.CarePlanKey("p1"), &plan)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, plan.Medications, 4)
	assert.Len(t, plan.Appointments, 2)
}

func TestDocumentPipelineUniqueSessionIDs(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(2, 1, 0.9))
	p := newDocumentPipeline(t, stub, store)

	first := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})
	second := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestDocumentPipelineExtractionFailureIsFatal(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(nil)
	stub.Register(docinterpreter.CallerLabel, failingResponder("model unavailable"))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	assert.False(t, result.Success)
	assert.Equal(t, StageExtraction, result.StageFailed)
	assert.NotEmpty(t, result.Error)
	assert.NotNil(t, result.PartialResults)

	// Nothing was persisted.
	var plan models.CarePlan
	found, err := store.GetJSON(context.Background(), database.CarePlanKey("p1"), &plan)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDocumentPipelineLowConfidenceEmptyExtractionFails(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(0, 0, 0.3))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	assert.False(t, result.Success)
	assert.Equal(t, StageExtraction, result.StageFailed)
	assert.Contains(t, result.Error, "extracted")

	// The failure envelope still carries the low-confidence entry.
	require.NotNil(t, result.PartialResults)
	require.NotEmpty(t, result.PartialResults.Errors)
	assert.Equal(t, StageExtraction, result.PartialResults.Errors[0].Stage)
	assert.Equal(t, SeverityHigh, result.PartialResults.Errors[0].Severity)
	assert.True(t, result.PartialResults.RequiresHumanReview)
}

func TestDocumentPipelineLowConfidenceNonEmptyIsFlagged(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(2, 1, 0.3))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.True(t, result.RequiresHumanReview)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, StageExtraction, result.Errors[0].Stage)
	assert.Equal(t, SeverityHigh, result.Errors[0].Severity)
}

func TestDocumentPipelineExtractionReviewFlagPropagates(t *testing.T) {
	store := setupStore(t)
	extraction := testExtraction(2, 1, 0.9)
	extraction.RequiresHumanReview = true
	stub := newDefaultStub(extraction)
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.True(t, result.RequiresHumanReview)
	assert.Len(t, result.Errors, 0)
}

func TestDocumentPipelineRiskFallback(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(8, 4, 0.9))
	stub.Register(riskstratifier.CallerLabel, failingResponder("risk model down"))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.True(t, result.RequiresHumanReview)

	risk := result.Results.RiskAssessment
	require.NotNil(t, risk)
	assert.True(t, risk.FallbackUsed)
	assert.Equal(t, models.RiskHigh, risk.OverallRiskLevel)
	assert.InDelta(t, 0.4, risk.ConfidenceScore, 0.001)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, StageRisk, result.Errors[0].Stage)
	assert.Equal(t, SeverityMedium, result.Errors[0].Severity)
}

func TestDocumentPipelineLowRiskConfidenceKeepsResult(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(2, 1, 0.9))
	stub.Register(riskstratifier.CallerLabel, func(*inference.Request) (json.RawMessage, error) {
		return json.Marshal(models.RiskAssessment{
			OverallRiskLevel: models.RiskLow,
			ConfidenceScore:  0.5,
			RiskAssessment:   models.RiskDetail{RiskReason: "thin evidence", Trending: "stable"},
		})
	})
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.True(t, result.RequiresHumanReview)
	assert.False(t, result.Results.RiskAssessment.FallbackUsed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, StageRisk, result.Errors[0].Stage)
}

func TestDocumentPipelineGuideFallback(t *testing.T) {
	store := setupStore(t)
	stub := newDefaultStub(testExtraction(3, 1, 0.9))
	stub.Register(patientcomms.CallerLabel, failingResponder("comms model down"))
	p := newDocumentPipeline(t, stub, store)

	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})

	require.True(t, result.Success)
	assert.True(t, result.RequiresHumanReview)

	guide := result.Results.PatientGuide
	require.NotNil(t, guide)
	assert.True(t, guide.FallbackUsed)
	assert.Len(t, guide.DailyCareChecklist, 3)
	// Emergency warnings land in the 911 bucket; routine ones are dropped.
	require.Len(t, guide.WarningSigns.EmergencyCall911, 1)
	assert.Equal(t, "chest pain", guide.WarningSigns.EmergencyCall911[0].SymptomInPlainLanguage)
	assert.Empty(t, guide.WarningSigns.CallDoctorSoon)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, StageCommunication, result.Errors[0].Stage)
}

func TestDocumentPipelineCarePlanOverwrite(t *testing.T) {
	store := setupStore(t)
	p := newDocumentPipeline(t, newDefaultStub(testExtraction(2, 1, 0.9)), store)
	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})
	require.True(t, result.Success)

	p2 := newDocumentPipeline(t, newDefaultStub(testExtraction(6, 3, 0.9)), store)
	result = p2.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})
	require.True(t, result.Success)

	var plan models.CarePlan
	found, err := store.GetJSON(context.Background(), database.CarePlanKey("p1"), &plan)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, plan.Medications, 6)
}

func TestDocumentPipelineCachesRiskForAdherence(t *testing.T) {
	store := setupStore(t)
	p := newDocumentPipeline(t, newDefaultStub(testExtraction(4, 2, 0.9)), store)
	result := p.ProcessDischarge(context.Background(), "text", models.PatientContext{PatientID: "p1"})
	require.True(t, result.Success)

	var risk models.RiskAssessment
	found, err := store.GetJSON(context.Background(), database.RiskKey("p1"), &risk)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RiskMedium, risk.OverallRiskLevel)
}
