package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/coverpoint/backend/internal/db"
	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Detection *service.DetectionService
	Conflicts *service.ConflictService
	Lifecycle *service.LifecycleService
	Health    *service.HealthService
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type detectRequest struct {
	AsOf          string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	ClearExisting *bool  `json:"clear_existing"`
}

type lifecycleRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
	Actor string `json:"actor" validate:"max=200"`
}

type healthRequest struct {
	Trigger string `json:"trigger" validate:"max=100"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Run gap detection for a property
// @Tags detection
// @Accept json
// @Produce json
// @Param id path string true "property id"
// @Param body body detectRequest false "detection options"
// @Success 200 {object} service.DetectionResult
// @Failure 404 {object} map[string]any
// @Router /api/properties/{id}/detect-gaps [post]
func (h *Handler) DetectGaps(c *gin.Context) {
	req, ok := h.bindDetect(c)
	if !ok {
		return
	}
	asOf, ok := parseAsOf(c, req.AsOf)
	if !ok {
		return
	}

	result, err := h.Detection.DetectForProperty(c.Request.Context(), c.Param("id"), asOf, clearExisting(req))
	if err != nil {
		h.writeServiceError(c, err, "gap detection failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Run gap detection for every property in an organization
// @Tags detection
// @Accept json
// @Produce json
// @Param id path string true "organization id"
// @Param body body detectRequest false "detection options"
// @Success 200 {object} service.OrgDetectionResult
// @Router /api/organizations/{id}/detect-gaps [post]
func (h *Handler) DetectGapsForOrganization(c *gin.Context) {
	req, ok := h.bindDetect(c)
	if !ok {
		return
	}
	asOf, ok := parseAsOf(c, req.AsOf)
	if !ok {
		return
	}

	result, err := h.Detection.DetectForOrganization(c.Request.Context(), c.Param("id"), asOf, clearExisting(req))
	if err != nil {
		h.writeServiceError(c, err, "organization detection failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Run conflict detection for a property
// @Tags detection
// @Accept json
// @Produce json
// @Param id path string true "property id"
// @Param body body detectRequest false "detection options"
// @Success 200 {object} service.ConflictDetectionResult
// @Failure 404 {object} map[string]any
// @Router /api/properties/{id}/detect-conflicts [post]
func (h *Handler) DetectConflicts(c *gin.Context) {
	req, ok := h.bindDetect(c)
	if !ok {
		return
	}

	result, err := h.Conflicts.DetectConflicts(c.Request.Context(), c.Param("id"), clearExisting(req))
	if err != nil {
		h.writeServiceError(c, err, "conflict detection failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary List gaps for a property
// @Tags findings
// @Produce json
// @Param id path string true "property id"
// @Param status query string false "filter by status"
// @Success 200 {array} models.Gap
// @Router /api/properties/{id}/gaps [get]
func (h *Handler) GapsList(c *gin.Context) {
	gaps, err := h.Store.ListGaps(c.Request.Context(), c.Param("id"), models.FindingStatus(c.Query("status")))
	if err != nil {
		h.writeServiceError(c, err, "list gaps failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"gaps": gaps, "count": len(gaps)})
}

// @Summary List conflicts for a property
// @Tags findings
// @Produce json
// @Param id path string true "property id"
// @Param status query string false "filter by status"
// @Success 200 {array} models.CoverageConflict
// @Router /api/properties/{id}/conflicts [get]
func (h *Handler) ConflictsList(c *gin.Context) {
	conflicts, err := h.Store.ListConflicts(c.Request.Context(), c.Param("id"), models.FindingStatus(c.Query("status")))
	if err != nil {
		h.writeServiceError(c, err, "list conflicts failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts, "count": len(conflicts)})
}

// @Summary Fetch one gap
// @Tags findings
// @Produce json
// @Param id path string true "gap id"
// @Success 200 {object} models.Gap
// @Failure 404 {object} map[string]any
// @Router /api/gaps/{id} [get]
func (h *Handler) GapGet(c *gin.Context) {
	gap, err := h.Store.GetGap(c.Request.Context(), c.Param("id"))
	h.writeLifecycleGap(c, gap, err)
}

// @Summary Fetch one conflict
// @Tags findings
// @Produce json
// @Param id path string true "conflict id"
// @Success 200 {object} models.CoverageConflict
// @Failure 404 {object} map[string]any
// @Router /api/conflicts/{id} [get]
func (h *Handler) ConflictGet(c *gin.Context) {
	conflict, err := h.Store.GetConflict(c.Request.Context(), c.Param("id"))
	h.writeLifecycleConflict(c, conflict, err)
}

// @Summary Acknowledge a gap
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "gap id"
// @Param body body lifecycleRequest false "notes"
// @Success 200 {object} models.Gap
// @Failure 404 {object} map[string]any
// @Router /api/gaps/{id}/acknowledge [post]
func (h *Handler) AcknowledgeGap(c *gin.Context) {
	req, ok := h.bindLifecycle(c)
	if !ok {
		return
	}
	gap, err := h.Lifecycle.AcknowledgeGap(c.Request.Context(), c.Param("id"), req.Notes, req.Actor)
	h.writeLifecycleGap(c, gap, err)
}

// @Summary Resolve a gap
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "gap id"
// @Param body body lifecycleRequest false "notes"
// @Success 200 {object} models.Gap
// @Failure 404 {object} map[string]any
// @Router /api/gaps/{id}/resolve [post]
func (h *Handler) ResolveGap(c *gin.Context) {
	req, ok := h.bindLifecycle(c)
	if !ok {
		return
	}
	gap, err := h.Lifecycle.ResolveGap(c.Request.Context(), c.Param("id"), req.Notes, req.Actor)
	h.writeLifecycleGap(c, gap, err)
}

// @Summary Acknowledge a conflict
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "conflict id"
// @Param body body lifecycleRequest false "notes"
// @Success 200 {object} models.CoverageConflict
// @Failure 404 {object} map[string]any
// @Router /api/conflicts/{id}/acknowledge [post]
func (h *Handler) AcknowledgeConflict(c *gin.Context) {
	req, ok := h.bindLifecycle(c)
	if !ok {
		return
	}
	conflict, err := h.Lifecycle.AcknowledgeConflict(c.Request.Context(), c.Param("id"), req.Notes, req.Actor)
	h.writeLifecycleConflict(c, conflict, err)
}

// @Summary Resolve a conflict
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "conflict id"
// @Param body body lifecycleRequest false "notes"
// @Success 200 {object} models.CoverageConflict
// @Failure 404 {object} map[string]any
// @Router /api/conflicts/{id}/resolve [post]
func (h *Handler) ResolveConflict(c *gin.Context) {
	req, ok := h.bindLifecycle(c)
	if !ok {
		return
	}
	conflict, err := h.Lifecycle.ResolveConflict(c.Request.Context(), c.Param("id"), req.Notes, req.Actor)
	h.writeLifecycleConflict(c, conflict, err)
}

// @Summary Calculate a new health score for a property
// @Tags health
// @Accept json
// @Produce json
// @Param id path string true "property id"
// @Param body body healthRequest false "calculation trigger"
// @Success 200 {object} models.HealthScore
// @Failure 404 {object} map[string]any
// @Router /api/properties/{id}/health-scores [post]
func (h *Handler) CalculateHealthScore(c *gin.Context) {
	var req healthRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
			return
		}
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "validation failed", err.Error())
		return
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = service.TriggerManual
	}

	score, err := h.Health.Calculate(c.Request.Context(), c.Param("id"), trigger)
	if err != nil {
		h.writeServiceError(c, err, "health score calculation failed")
		return
	}
	c.JSON(http.StatusOK, score)
}

// @Summary Health score history for a property
// @Tags health
// @Produce json
// @Param id path string true "property id"
// @Param limit query int false "max rows"
// @Success 200 {array} models.HealthScore
// @Router /api/properties/{id}/health-scores [get]
func (h *Handler) HealthScoresList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	scores, err := h.Store.ListHealthScores(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.writeServiceError(c, err, "list health scores failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores, "count": len(scores)})
}

func (h *Handler) bindDetect(c *gin.Context) (detectRequest, bool) {
	var req detectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
			return req, false
		}
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "validation failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) bindLifecycle(c *gin.Context) (lifecycleRequest, bool) {
	var req lifecycleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
			return req, false
		}
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "validation failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) writeLifecycleGap(c *gin.Context, gap *models.Gap, err error) {
	if err != nil {
		h.writeServiceError(c, err, "gap request failed")
		return
	}
	if gap == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "gap not found", nil)
		return
	}
	c.JSON(http.StatusOK, gap)
}

func (h *Handler) writeLifecycleConflict(c *gin.Context, conflict *models.CoverageConflict, err error) {
	if err != nil {
		h.writeServiceError(c, err, "conflict request failed")
		return
	}
	if conflict == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "conflict not found", nil)
		return
	}
	c.JSON(http.StatusOK, conflict)
}

func (h *Handler) writeServiceError(c *gin.Context, err error, msg string) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "property not found", nil)
		return
	}
	h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	writeError(c, http.StatusInternalServerError, "INTERNAL", msg, nil)
}

func parseAsOf(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "as_of must be YYYY-MM-DD", err.Error())
		return time.Time{}, false
	}
	return asOf, true
}

func clearExisting(req detectRequest) bool {
	if req.ClearExisting == nil {
		return true
	}
	return *req.ClearExisting
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if details != nil {
		body["error"].(gin.H)["details"] = details
	}
	c.JSON(status, body)
}
