package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	"github.com/noah-isme/sma-master-scheduler/internal/models"
	"github.com/noah-isme/sma-master-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
	"github.com/noah-isme/sma-master-scheduler/pkg/response"
)

type masterScheduler interface {
	Generate(ctx context.Context, req dto.MasterScheduleRequest, actorID string) (*dto.MasterScheduleResponse, error)
	Submit(ctx context.Context, req dto.MasterScheduleRequest, actorID string) (*dto.RunSubmitResponse, error)
	GetRun(ctx context.Context, id string, includeResult bool) (*dto.RunResponse, error)
	ListRuns(ctx context.Context, query dto.RunListQuery) ([]dto.RunResponse, *models.Pagination, error)
	DeleteRun(ctx context.Context, id string) error
	Regenerate(ctx context.Context, parentID string, req dto.RegenerateRequest, actorID string) (*dto.RunResponse, error)
	RunVariants(ctx context.Context, req dto.VariantsRequest) (*dto.VariantsResponse, error)
}

// MasterScheduleHandler exposes master schedule generation and run endpoints.
type MasterScheduleHandler struct {
	service masterScheduler
	prefix  string
}

// NewMasterScheduleHandler constructs the handler. prefix is the API prefix
// used to build Location headers.
func NewMasterScheduleHandler(svc *service.MasterScheduleService, prefix string) *MasterScheduleHandler {
	return &MasterScheduleHandler{service: svc, prefix: prefix}
}

// Generate godoc
// @Summary Generate a master schedule synchronously
// @Description Runs the engine inline. When the run store is enabled the run is persisted and runId is returned.
// @Tags MasterSchedule
// @Accept json
// @Produce json
// @Param payload body dto.MasterScheduleRequest true "Master schedule configuration"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /master-schedules/generate [post]
func (h *MasterScheduleHandler) Generate(c *gin.Context) {
	var req dto.MasterScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid master schedule payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Variants godoc
// @Summary Compare several master schedule configurations
// @Tags MasterSchedule
// @Accept json
// @Produce json
// @Param payload body dto.VariantsRequest true "Named configurations"
// @Success 200 {object} response.Envelope
// @Router /master-schedules/variants [post]
func (h *MasterScheduleHandler) Variants(c *gin.Context) {
	var req dto.VariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid variants payload"))
		return
	}
	result, err := h.service.RunVariants(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SubmitRun godoc
// @Summary Queue a master schedule run
// @Tags Runs
// @Accept json
// @Produce json
// @Param payload body dto.MasterScheduleRequest true "Master schedule configuration"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /runs [post]
func (h *MasterScheduleHandler) SubmitRun(c *gin.Context) {
	var req dto.MasterScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid master schedule payload"))
		return
	}
	run, err := h.service.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run, h.runLocation(run.ID))
}

// GetRun godoc
// @Summary Get a run and, once finished, its result
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Param includeResult query bool false "Include the engine result (default true)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *MasterScheduleHandler) GetRun(c *gin.Context) {
	include := true
	if raw := c.Query("includeResult"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "includeResult must be a boolean"))
			return
		}
		include = parsed
	}
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"), include)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListRuns godoc
// @Summary List runs
// @Tags Runs
// @Produce json
// @Param status query string false "QUEUED, PROCESSING, FINISHED or FAILED"
// @Param scheduleType query string false "standard, ab_block, 4x4_block or trimester"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *MasterScheduleHandler) ListRuns(c *gin.Context) {
	var query dto.RunListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	runs, pagination, err := h.service.ListRuns(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// DeleteRun godoc
// @Summary Delete a run
// @Tags Runs
// @Param id path string true "Run ID"
// @Success 204
// @Router /runs/{id} [delete]
func (h *MasterScheduleHandler) DeleteRun(c *gin.Context) {
	if err := h.service.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Regenerate godoc
// @Summary Regenerate a run with locked sections
// @Description Reuses the stored configuration and seed. Async requests are queued and answered with 202.
// @Tags Runs
// @Accept json
// @Produce json
// @Param id path string true "Parent run ID"
// @Param payload body dto.RegenerateRequest true "Locks and overrides"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /runs/{id}/regenerate [post]
func (h *MasterScheduleHandler) Regenerate(c *gin.Context) {
	var req dto.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid regenerate payload"))
		return
	}
	run, err := h.service.Regenerate(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if run.Status == models.RunStatusFinished {
		c.Header("Location", h.runLocation(run.ID))
		response.Created(c, run)
		return
	}
	response.Accepted(c, run, h.runLocation(run.ID))
}

func (h *MasterScheduleHandler) runLocation(id string) string {
	return h.prefix + "/runs/" + id
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
