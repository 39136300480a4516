package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

type studentSchedulerMock struct {
	captured dto.StudentScheduleRequest
	err      error
}

func (m *studentSchedulerMock) Schedule(ctx context.Context, req dto.StudentScheduleRequest) (*dto.StudentScheduleResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.StudentScheduleResponse{RunID: req.RunID}, nil
}

func TestStudentScheduleSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentSchedulerMock{}
	handler := &StudentScheduleHandler{service: mockSvc}
	body := []byte(`{"runId":"run-1","students":[{"id":"s1","requests":[{"courseId":"alg1","priority":1}]}]}`)
	req, _ := http.NewRequest(http.MethodPost, "/student-schedules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Schedule(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "run-1", mockSvc.captured.RunID)
	require.Len(t, mockSvc.captured.Students, 1)
}

func TestStudentScheduleRunPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &StudentScheduleHandler{service: &studentSchedulerMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "run is not finished")}}
	req, _ := http.NewRequest(http.MethodPost, "/student-schedules", bytes.NewReader([]byte(`{"runId":"run-1","students":[{"id":"s1"}]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Schedule(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestStudentScheduleMalformed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &StudentScheduleHandler{service: &studentSchedulerMock{}}
	req, _ := http.NewRequest(http.MethodPost, "/student-schedules", bytes.NewReader([]byte(`{"students":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Schedule(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
