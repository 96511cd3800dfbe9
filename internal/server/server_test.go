// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	agentadherence "carepath/internal/agents/adherence"
	"carepath/internal/agents/docinterpreter"
	"carepath/internal/agents/escalation"
	"carepath/internal/agents/patientcomms"
	"carepath/internal/agents/riskstratifier"
	"carepath/internal/common/config"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/inference"
	"carepath/internal/models"
	"carepath/internal/notify"
	"carepath/internal/pipeline"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDischargeText = strings.Repeat(
	"Discharge Medications: Lisinopril 10mg once daily by mouth. Follow-up with Cardiology in 7 days. ", 3)

func defaultExtraction() json.RawMessage {
	return json.RawMessage(`{
		"medications": [
			{"name": "Lisinopril", "dosage": "10mg", "frequency": "once daily", "route": "oral"},
			{"name": "Metformin", "dosage": "500mg", "frequency": "twice daily", "route": "oral"}
		],
		"follow_up_instructions": [{"specialty": "Cardiology", "timeframe": "7 days"}],
		"warning_signs": [{"symptom": "chest pain", "severity": "emergency", "action": "Call 911"}],
		"activity_restrictions": [],
		"overall_confidence": 0.9,
		"requires_human_review": false
	}`)
}

func setupServer(t *testing.T) (*Server, *database.Store) {
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := database.NewFromClient(client)

	stub := inference.NewStub()
	stub.Register(docinterpreter.CallerLabel, func(*inference.Request) (json.RawMessage, error) {
		return defaultExtraction(), nil
	})
	stub.Register(riskstratifier.CallerLabel, riskstratifier.StubResponder)
	stub.Register(patientcomms.CallerLabel, patientcomms.StubResponder)
	stub.Register(agentadherence.CallerLabel, agentadherence.StubResponder)
	stub.Register(escalation.CallerLabel, escalation.StubResponder)

	log := logger.NewTestLogger(t)
	docs := pipeline.NewDocumentPipeline(
		docinterpreter.New(stub, log),
		riskstratifier.New(stub, log),
		patientcomms.New(stub, log),
		store, nil, log,
	)
	adherencePipeline := pipeline.NewAdherencePipeline(
		agentadherence.New(stub, log),
		escalation.New(stub, log),
		store, notify.NopNotifier{}, nil, log, 7,
	)

	cfg := config.Config{
		App: config.AppConfig{Name: "carepath", Version: "test", Environment: "test"},
		Server: config.ServerConfig{
			Port:            0,
			MaxUploadBytes:  10 << 20,
			ClientRateLimit: "1000-M",
		},
		Pipelines: config.PipelineConfig{HistoryWindowDays: 7},
	}

	srv, err := New(cfg, docs, adherencePipeline, store, log)
	require.NoError(t, err)
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestProcessTextRejectsMissingText(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/documents/process-text", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "discharge_text is required")
}

func TestProcessTextRejectsShortText(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/documents/process-text", map[string]interface{}{
		"discharge_text": "too short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too short")
}

func TestProcessTextEndToEnd(t *testing.T) {
	srv, store := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/documents/process-text", map[string]interface{}{
		"discharge_text": sampleDischargeText,
		"patient_context": map[string]interface{}{
			"patient_id":     "p1",
			"literacy_level": "medium",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.DocumentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.False(t, result.RequiresHumanReview)
	// 2 medications and 1 follow-up grade as low risk.
	assert.Equal(t, models.RiskLow, result.Results.RiskAssessment.OverallRiskLevel)

	// Session retrievable over the API.
	rec = doJSON(t, srv, http.MethodGet, "/api/documents/session/"+result.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Care plan now exists for the adherence pipeline.
	var plan models.CarePlan
	found, err := store.GetJSON(context.Background(), database.CarePlanKey("p1"), &plan)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/documents/session/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckInValidation(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/adherence/check-in", map[string]interface{}{
		"check_in_data": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "patient_id is required")

	rec = doJSON(t, srv, http.MethodPost, "/api/adherence/check-in", map[string]interface{}{
		"patient_id": "p1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "check_in_data is required")
}

func TestCheckInWithoutCarePlan(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/adherence/check-in", map[string]interface{}{
		"patient_id": "ghost",
		"check_in_data": map[string]interface{}{
			"medications": []map[string]interface{}{{"name": "Med", "taken": true}},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "discharge processing")
}

func TestCheckInFlow(t *testing.T) {
	srv, _ := setupServer(t)

	// Discharge processing first, so the care plan exists.
	rec := doJSON(t, srv, http.MethodPost, "/api/documents/process-text", map[string]interface{}{
		"discharge_text":  sampleDischargeText,
		"patient_context": map[string]interface{}{"patient_id": "p1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/adherence/check-in", map[string]interface{}{
		"patient_id": "p1",
		"check_in_data": map[string]interface{}{
			"medications": []map[string]interface{}{
				{"name": "Lisinopril", "taken": true},
				{"name": "Metformin", "taken": true},
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.AdherenceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, models.StatusOnTrack, result.AdherenceStatus)
	assert.False(t, result.EscalationTriggered)

	// History and status now reflect the check-in.
	rec = doJSON(t, srv, http.MethodGet, "/api/adherence/history/p1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = doJSON(t, srv, http.MethodGet, "/api/adherence/status/p1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), models.StatusOnTrack)
}

func TestAdherenceStatusWithoutCheckIns(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/adherence/status/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientLifecycle(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/patients", map[string]interface{}{
		"patient_id":     "p1",
		"name":           "Pat Doe",
		"age":            67,
		"literacy_level": "low",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/patients/p1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pat Doe")

	rec = doJSON(t, srv, http.MethodGet, "/api/patients/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientDefaults(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/patients", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Anonymous")
	assert.Contains(t, rec.Body.String(), models.LiteracyMedium)
}

func TestCarePlanEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/patients/p1/care-plan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doJSON(t, srv, http.MethodPost, "/api/documents/process-text", map[string]interface{}{
		"discharge_text":  sampleDischargeText,
		"patient_context": map[string]interface{}{"patient_id": "p1"},
	})

	rec = doJSON(t, srv, http.MethodGet, "/api/patients/p1/care-plan", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lisinopril")
}
