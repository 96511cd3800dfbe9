// internal/server/adherence.go
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carepath/internal/common/database"
	cperrors "carepath/internal/common/errors"
	"carepath/internal/models"
	"carepath/internal/pipeline"
)

type checkInRequest struct {
	PatientID   string `json:"patient_id"`
	CheckInData *struct {
		Date         string                    `json:"date"`
		Medications  []models.MedicationCheck  `json:"medications"`
		Appointments []models.AppointmentCheck `json:"appointments"`
		Restrictions []models.RestrictionCheck `json:"restrictions"`
		PatientNotes string                    `json:"patient_notes"`
	} `json:"check_in_data"`
}

// handleCheckIn submits a daily check-in and runs the adherence pipeline.
func (s *Server) handleCheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PatientID == "" {
		respondError(c, http.StatusBadRequest, "patient_id is required")
		return
	}
	if req.CheckInData == nil {
		respondError(c, http.StatusBadRequest, "check_in_data is required")
		return
	}

	checkIn := models.CheckIn{
		Date:         req.CheckInData.Date,
		Responded:    true,
		Medications:  req.CheckInData.Medications,
		Appointments: req.CheckInData.Appointments,
		Restrictions: req.CheckInData.Restrictions,
		PatientNotes: req.CheckInData.PatientNotes,
	}
	if checkIn.Date == "" {
		checkIn.Date = time.Now().UTC().Format("2006-01-02")
	}
	if checkIn.Medications == nil {
		checkIn.Medications = []models.MedicationCheck{}
	}

	result := s.adherence.MonitorAdherence(c.Request.Context(), req.PatientID, checkIn)

	status := http.StatusOK
	if !result.Success {
		switch {
		case result.StageFailed == pipeline.StageLoad:
			status = http.StatusNotFound
		case result.ErrorKind != "":
			status = cperrors.HTTPStatus(cperrors.FailureKind(result.ErrorKind))
		default:
			status = http.StatusInternalServerError
		}
	}
	c.JSON(status, result)
}

// handleAdherenceHistory lists a patient's recent check-ins.
func (s *Server) handleAdherenceHistory(c *gin.Context) {
	patientID := c.Param("patientId")
	days := s.cfg.Pipelines.HistoryWindowDays
	if q := c.Query("days"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			days = parsed
		}
	}

	raw, err := s.store.GetRecent(c.Request.Context(), database.CheckInsKey(patientID), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	checkIns := make([]models.CheckIn, 0, len(raw))
	for _, item := range raw {
		var ci models.CheckIn
		if err := json.Unmarshal(item, &ci); err != nil {
			continue
		}
		checkIns = append(checkIns, ci)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"patient_id": patientID,
		"check_ins":  checkIns,
		"total":      len(checkIns),
	})
}

// handleAdherenceStatus reports the latest adherence status for a patient.
func (s *Server) handleAdherenceStatus(c *gin.Context) {
	patientID := c.Param("patientId")

	raw, err := s.store.GetRecent(c.Request.Context(), database.CheckInsKey(patientID), s.cfg.Pipelines.HistoryWindowDays)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if len(raw) == 0 {
		respondError(c, http.StatusNotFound, "No check-in data found for patient")
		return
	}

	var latest models.CheckIn
	if err := json.Unmarshal(raw[len(raw)-1], &latest); err != nil {
		respondError(c, http.StatusInternalServerError, "Corrupt check-in record")
		return
	}

	status := "UNKNOWN"
	if latest.AdherenceAssessment != nil {
		status = latest.AdherenceAssessment.AdherenceStatus
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"patient_id":      patientID,
		"current_status":  status,
		"last_check_in":   latest.Timestamp,
		"total_check_ins": len(raw),
	})
}
