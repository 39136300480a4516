package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	"github.com/noah-isme/sma-master-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
	"github.com/noah-isme/sma-master-scheduler/pkg/response"
)

type studentScheduler interface {
	Schedule(ctx context.Context, req dto.StudentScheduleRequest) (*dto.StudentScheduleResponse, error)
}

// StudentScheduleHandler seats students into master schedule sections.
type StudentScheduleHandler struct {
	service studentScheduler
}

// NewStudentScheduleHandler constructs the handler.
func NewStudentScheduleHandler(svc *service.StudentScheduleService) *StudentScheduleHandler {
	return &StudentScheduleHandler{service: svc}
}

// Schedule godoc
// @Summary Seat students by course request priority
// @Tags StudentSchedule
// @Accept json
// @Produce json
// @Param payload body dto.StudentScheduleRequest true "Students and a run id or inline sections"
// @Success 200 {object} response.Envelope
// @Router /student-schedules [post]
func (h *StudentScheduleHandler) Schedule(c *gin.Context) {
	var req dto.StudentScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student schedule payload"))
		return
	}
	result, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
