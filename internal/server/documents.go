// internal/server/documents.go
package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledongthuc/pdf"

	"carepath/internal/common/database"
	cperrors "carepath/internal/common/errors"
	"carepath/internal/models"
	"carepath/internal/pipeline"
)

const minDischargeTextLength = 100

// handleProcessDocument accepts a multipart PDF or plain-text upload and
// runs the document pipeline on its text.
func (s *Server) handleProcessDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("document")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No document file provided")
		return
	}
	if fileHeader.Size > s.cfg.Server.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "Document exceeds upload size limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Could not read uploaded document")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Could not read uploaded document")
		return
	}

	dischargeText, err := extractDocumentText(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(strings.TrimSpace(dischargeText)) < minDischargeTextLength {
		respondError(c, http.StatusBadRequest, "Document text too short or empty - possible OCR failure")
		return
	}

	patient := patientContextFromForm(c)
	result := s.docs.ProcessDischarge(c.Request.Context(), dischargeText, patient)
	c.JSON(documentStatus(result), result)
}

type processTextRequest struct {
	DischargeText  string                 `json:"discharge_text"`
	PatientContext *models.PatientContext `json:"patient_context"`
}

// handleProcessText runs the document pipeline on raw discharge text.
func (s *Server) handleProcessText(c *gin.Context) {
	var req processTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DischargeText == "" {
		respondError(c, http.StatusBadRequest, "discharge_text is required")
		return
	}
	if len(strings.TrimSpace(req.DischargeText)) < minDischargeTextLength {
		respondError(c, http.StatusBadRequest, "Document text too short or empty - possible OCR failure")
		return
	}

	patient := models.PatientContext{}
	if req.PatientContext != nil {
		patient = *req.PatientContext
	}
	if patient.PatientID == "" {
		patient.PatientID = fmt.Sprintf("patient_%d", time.Now().UnixMilli())
	}
	if patient.LiteracyLevel == "" {
		patient.LiteracyLevel = models.LiteracyMedium
	}

	result := s.docs.ProcessDischarge(c.Request.Context(), req.DischargeText, patient)
	c.JSON(documentStatus(result), result)
}

// handleGetSession returns a persisted document run by session id.
func (s *Server) handleGetSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	var session pipeline.SessionResults
	found, err := s.store.GetJSON(c.Request.Context(), database.SessionKey(sessionID), &session)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": session})
}

// documentStatus maps a pipeline envelope to an HTTP status. Failures from
// classified inference errors keep their taxonomy mapping so clients can
// tell exhaustion apart from faults.
func documentStatus(result *pipeline.DocumentResult) int {
	if result.Success {
		return http.StatusOK
	}
	if result.ErrorKind != "" {
		return cperrors.HTTPStatus(cperrors.FailureKind(result.ErrorKind))
	}
	return http.StatusInternalServerError
}

func extractDocumentText(filename, contentType string, data []byte) (string, error) {
	isPDF := contentType == "application/pdf" ||
		strings.EqualFold(filepath.Ext(filename), ".pdf") ||
		bytes.HasPrefix(data, []byte("%PDF"))
	if !isPDF {
		return string(data), nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("could not parse PDF document")
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("could not extract text from PDF document")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("could not extract text from PDF document")
	}
	return buf.String(), nil
}

func patientContextFromForm(c *gin.Context) models.PatientContext {
	patient := models.PatientContext{
		PatientID:            c.PostForm("patient_id"),
		Name:                 c.PostForm("name"),
		HasChronicConditions: c.PostForm("has_chronic_conditions") == "true",
		LiteracyLevel:        c.PostForm("literacy_level"),
		LivesAlone:           c.PostForm("lives_alone") == "true",
		HasCaregiver:         c.PostForm("has_caregiver") == "true",
	}
	if patient.PatientID == "" {
		patient.PatientID = fmt.Sprintf("patient_%d", time.Now().UnixMilli())
	}
	if patient.LiteracyLevel == "" {
		patient.LiteracyLevel = models.LiteracyMedium
	}
	if age, err := strconv.Atoi(c.PostForm("age")); err == nil {
		patient.Age = age
	}
	return patient
}
