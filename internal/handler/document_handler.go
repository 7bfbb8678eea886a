package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/service"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
	"github.com/campusregistry/registrar-api/pkg/response"
)

// DocumentHandler exposes document request endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List godoc
// @Summary List document requests
// @Tags Documents
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param type query string false "Filter by document type"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /document-requests [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var filter models.DocumentRequestFilter
	filter.StudentID = c.Query("studentId")
	filter.DocumentType = models.DocumentType(strings.ToUpper(c.Query("type")))
	filter.Status = models.DocumentRequestStatus(strings.ToUpper(c.Query("status")))
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "limit", 20)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	requests, pagination, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get document request
// @Tags Documents
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /document-requests/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	request, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Create godoc
// @Summary Open a document request
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.CreateDocumentRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /document-requests [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.CreateDocumentRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.documents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// UpdateStatus godoc
// @Summary Advance a document request one step
// @Description Adjacent-only lifecycle; READY renders the document, CLAIMED stamps the claim date
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.UpdateDocumentRequestStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /document-requests/{id}/status [put]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateDocumentRequestStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.documents.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel a document request
// @Tags Documents
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /document-requests/{id}/cancel [post]
func (h *DocumentHandler) Cancel(c *gin.Context) {
	request, err := h.documents.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// DownloadToken godoc
// @Summary Issue a signed download token for a generated document
// @Tags Documents
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /document-requests/{id}/download-token [post]
func (h *DocumentHandler) DownloadToken(c *gin.Context) {
	token, expiresAt, err := h.documents.DownloadToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download a generated document by token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, err := h.documents.OpenDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename=\"document.pdf\"")
	c.Header("Content-Type", "application/pdf")
	http.ServeContent(c.Writer, c.Request, "document.pdf", time.Time{}, file)
}
