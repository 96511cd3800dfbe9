// internal/server/patients.go
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carepath/internal/common/database"
	"carepath/internal/models"
)

type createPatientRequest struct {
	PatientID         string `json:"patient_id"`
	Name              string `json:"name"`
	Age               int    `json:"age"`
	ChronicConditions bool   `json:"chronic_conditions"`
	LiteracyLevel     string `json:"literacy_level"`
}

// handleCreatePatient registers a patient record.
func (s *Server) handleCreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	patient := models.Patient{
		PatientID:            req.PatientID,
		Name:                 req.Name,
		Age:                  req.Age,
		HasChronicConditions: req.ChronicConditions,
		LiteracyLevel:        req.LiteracyLevel,
		CreatedAt:            time.Now().UTC(),
	}
	if patient.PatientID == "" {
		patient.PatientID = fmt.Sprintf("patient_%d", time.Now().UnixMilli())
	}
	if patient.Name == "" {
		patient.Name = "Anonymous"
	}
	if patient.LiteracyLevel == "" {
		patient.LiteracyLevel = models.LiteracyMedium
	}

	if err := s.store.SetJSON(c.Request.Context(), database.PatientKey(patient.PatientID), patient); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "patient": patient})
}

// handleGetPatient returns a patient record by id.
func (s *Server) handleGetPatient(c *gin.Context) {
	patientID := c.Param("patientId")

	var patient models.Patient
	found, err := s.store.GetJSON(c.Request.Context(), database.PatientKey(patientID), &patient)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "Patient not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patient": patient})
}

// handleGetCarePlan returns the patient's current care plan.
func (s *Server) handleGetCarePlan(c *gin.Context) {
	patientID := c.Param("patientId")

	var plan models.CarePlan
	found, err := s.store.GetJSON(c.Request.Context(), database.CarePlanKey(patientID), &plan)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "Care plan not found - patient may not have processed discharge document yet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "care_plan": plan})
}
