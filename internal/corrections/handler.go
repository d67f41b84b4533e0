package corrections

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
	"github.com/riverojonathas/FDE-sub000/internal/shared/server/middleware"
	"github.com/riverojonathas/FDE-sub000/internal/shared/server/respond"
)

const maxUploadBytes = 10 << 20

// Handler wires HTTP handlers to the corrections service.
type Handler struct {
	Svc *Service
	// Extract converts an uploaded document into plain text. Wired by the
	// bootstrap so the handler stays independent of file formats.
	Extract func(data []byte, filename string) (string, error)
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches correction routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/corrections", h.createCorrection)
	rg.POST("/corrections/upload", h.uploadCorrection)
	rg.GET("/corrections", h.listCorrections)
	rg.GET("/corrections/:id", h.getCorrection)
	rg.GET("/corrections/:id/history", h.getHistory)
	rg.POST("/corrections/:id/steps/:agentId/response", h.submitStepResponse)
	rg.POST("/corrections/:id/steps/:agentId/reset", h.resetStep)
	rg.POST("/corrections/:id/review", h.reviewCorrection)
	rg.POST("/templates", h.saveTemplate)
	rg.GET("/templates/:agentId", h.listTemplates)
	rg.DELETE("/templates/:agentId/:id", h.deleteTemplate)
}

// requestContext carries the middleware request ID into the service context
// so the async pipeline logs tie back to the originating request.
func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

// tagCorrectionID exposes the correction ID to the logging middleware.
func tagCorrectionID(c *gin.Context) string {
	id := c.Param("id")
	c.Set("correctionId", id)
	return id
}

type createRequest struct {
	Text    string  `json:"text"`
	Options Options `json:"options"`
}

func (h *Handler) createCorrection(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	h.startCorrection(c, req.Text, req.Options)
}

// uploadCorrection accepts a multipart document, extracts its text, and
// starts a run with it.
func (h *Handler) uploadCorrection(c *gin.Context) {
	if h.Extract == nil {
		respond.Error(c, http.StatusNotImplemented, "not_supported", "document upload is not configured", nil)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if file.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "file exceeds the 10MB limit", nil)
		return
	}
	src, err := file.Open()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
		return
	}

	text, err := h.Extract(data, file.Filename)
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "extract_error", "could not extract text from document", nil)
		return
	}

	opts := Options{
		Mode:              c.PostForm("mode"),
		IncludeSubthemes:  c.PostForm("includeSubthemes") == "true",
		IncludePlagiarism: c.PostForm("includePlagiarism") == "true",
	}
	h.startCorrection(c, text, opts)
}

func (h *Handler) startCorrection(c *gin.Context, text string, opts Options) {
	correction, err := h.Svc.Create(requestContext(c), text, opts)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyText):
			respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", []map[string]string{
				{"field": "text", "issue": "required"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start correction", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{
		"correctionId": correction.ID,
		"status":       correction.Status,
		"steps":        correction.Steps,
	})
}

func (h *Handler) getCorrection(c *gin.Context) {
	correction, err := h.Svc.Get(requestContext(c), tagCorrectionID(c))
	if err != nil {
		h.respondLookupError(c, err, "correction")
		return
	}
	respond.OK(c, correction)
}

func (h *Handler) listCorrections(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	corrections, err := h.Svc.List(requestContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list corrections", nil)
		return
	}
	respond.OK(c, gin.H{"corrections": corrections, "limit": limit, "offset": offset})
}

func (h *Handler) getHistory(c *gin.Context) {
	entries, err := h.Svc.HistoryFor(requestContext(c), tagCorrectionID(c))
	if err != nil {
		h.respondLookupError(c, err, "correction")
		return
	}
	respond.OK(c, gin.H{"history": entries})
}

type stepResponseRequest struct {
	Response string `json:"response"`
}

func (h *Handler) submitStepResponse(c *gin.Context) {
	var req stepResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Response == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "response text is required", nil)
		return
	}

	correction, err := h.Svc.SubmitStepResponse(requestContext(c), tagCorrectionID(c), c.Param("agentId"), req.Response)
	if err != nil {
		var verr *normalizer.ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusUnprocessableEntity, "validation_error", verr.Error(), gin.H{
				"missing": verr.Missing,
				"steps":   correction.Steps,
			})
		case errors.Is(err, normalizer.ErrRepairExhausted):
			respond.Error(c, http.StatusUnprocessableEntity, "repair_exhausted", "response could not be parsed", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "correction not found", nil)
		case errors.Is(err, pipeline.ErrStepNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "step not found", nil)
		case errors.Is(err, pipeline.ErrStepNotPending), errors.Is(err, pipeline.ErrActiveStepExists):
			respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit step response", nil)
		}
		return
	}
	respond.OK(c, correction)
}

func (h *Handler) resetStep(c *gin.Context) {
	correction, err := h.Svc.ResetStep(requestContext(c), tagCorrectionID(c), c.Param("agentId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "correction not found", nil)
		case errors.Is(err, pipeline.ErrStepNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "step not found", nil)
		case errors.Is(err, pipeline.ErrStepNotCompleted):
			respond.Error(c, http.StatusConflict, "invalid_state", "only completed steps can be reset", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to reset step", nil)
		}
		return
	}
	respond.OK(c, correction)
}

type reviewRequest struct {
	ReviewedBy    string   `json:"reviewedBy"`
	AdjustedScore *float64 `json:"adjustedScore"`
	Comments      string   `json:"comments"`
	Status        string   `json:"status"`
}

func (h *Handler) reviewCorrection(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ReviewedBy == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "reviewedBy is required", nil)
		return
	}

	correction, err := h.Svc.Review(requestContext(c), tagCorrectionID(c), Review{
		ReviewedBy:    req.ReviewedBy,
		AdjustedScore: req.AdjustedScore,
		Comments:      req.Comments,
		Status:        req.Status,
	})
	if err != nil {
		h.respondLookupError(c, err, "correction")
		return
	}
	respond.OK(c, correction)
}

type templateRequest struct {
	ID        string   `json:"id"`
	AgentID   string   `json:"agentId"`
	Template  string   `json:"template"`
	Version   int      `json:"version"`
	IsDefault bool     `json:"isDefault"`
	Variables []string `json:"variables"`
}

func (h *Handler) saveTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	tpl, err := h.Svc.SaveTemplate(requestContext(c), PromptTemplate{
		ID:        req.ID,
		AgentID:   req.AgentID,
		Template:  req.Template,
		Version:   req.Version,
		IsDefault: req.IsDefault,
		Variables: req.Variables,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateInvalid):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save template", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, tpl)
}

func (h *Handler) listTemplates(c *gin.Context) {
	templates, err := h.Svc.TemplatesFor(requestContext(c), c.Param("agentId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateInvalid):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list templates", nil)
		}
		return
	}
	respond.OK(c, gin.H{"templates": templates})
}

func (h *Handler) deleteTemplate(c *gin.Context) {
	if err := h.Svc.DeleteTemplate(requestContext(c), c.Param("id")); err != nil {
		h.respondLookupError(c, err, "template")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondLookupError(c *gin.Context, err error, entity string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", entity+" not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
