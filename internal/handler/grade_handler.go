package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusregistry/registrar-api/internal/service"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
	"github.com/campusregistry/registrar-api/pkg/response"
)

// GradeHandler exposes grade, assessment and score endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Get godoc
// @Summary Get the grade record of an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [get]
func (h *GradeHandler) Get(c *gin.Context) {
	grade, err := h.grades.GetGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Upsert godoc
// @Summary Write the grade record of an enrollment
// @Description Rejected once the grade has been finalized
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.UpsertGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Finalize godoc
// @Summary Finalize the grade of an enrollment
// @Description Stamps the submission date; finalizing twice is rejected
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/grade/finalize [post]
func (h *GradeHandler) Finalize(c *gin.Context) {
	grade, err := h.grades.FinalizeGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// TermScore godoc
// @Summary Compute the weighted term score of an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/term-score [get]
func (h *GradeHandler) TermScore(c *gin.Context) {
	score, err := h.grades.ComputeTermScore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// ListAssessments godoc
// @Summary List the graded activities of an offering
// @Tags Assessments
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/assessments [get]
func (h *GradeHandler) ListAssessments(c *gin.Context) {
	assessments, err := h.grades.ListAssessments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, nil)
}

// CreateAssessment godoc
// @Summary Add a graded activity to an offering
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body service.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Router /offerings/{id}/assessments [post]
func (h *GradeHandler) CreateAssessment(c *gin.Context) {
	var req service.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.grades.CreateAssessment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// WeightSummary godoc
// @Summary Report the declared assessment weight total of an offering
// @Tags Assessments
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/assessments/weight-summary [get]
func (h *GradeHandler) WeightSummary(c *gin.Context) {
	summary, err := h.grades.WeightSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// UpdateAssessment godoc
// @Summary Update a graded activity
// @Tags Assessments
// @Accept json
// @Produce json
// @Param assessmentId path string true "Assessment ID"
// @Param payload body service.UpdateAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{assessmentId} [put]
func (h *GradeHandler) UpdateAssessment(c *gin.Context) {
	var req service.UpdateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.grades.UpdateAssessment(c.Request.Context(), c.Param("assessmentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// DeleteAssessment godoc
// @Summary Delete a graded activity
// @Tags Assessments
// @Produce json
// @Param assessmentId path string true "Assessment ID"
// @Success 204
// @Router /assessments/{assessmentId} [delete]
func (h *GradeHandler) DeleteAssessment(c *gin.Context) {
	if err := h.grades.DeleteAssessment(c.Request.Context(), c.Param("assessmentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordScore godoc
// @Summary Record a student's score on an assessment
// @Description Re-recording overwrites the previous score
// @Tags Assessments
// @Accept json
// @Produce json
// @Param assessmentId path string true "Assessment ID"
// @Param payload body service.RecordScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{assessmentId}/scores [post]
func (h *GradeHandler) RecordScore(c *gin.Context) {
	var req service.RecordScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.grades.RecordScore(c.Request.Context(), c.Param("assessmentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// ExportGradeSheet godoc
// @Summary Export an offering's grade sheet
// @Tags Grades
// @Produce octet-stream
// @Param id path string true "Offering ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /offerings/{id}/grade-sheet [get]
func (h *GradeHandler) ExportGradeSheet(c *gin.Context) {
	payload, filename, err := h.grades.ExportGradeSheet(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	contentType := "text/csv"
	if c.Query("format") == "pdf" {
		contentType = "application/pdf"
	}
	c.Data(http.StatusOK, contentType, payload)
}
