package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

func placedSection(id, courseID, period string, maxSize int) *engine.Section {
	slot, _ := engine.ParseSlot(period)
	return &engine.Section{ID: id, CourseID: courseID, MaxSize: maxSize, Enrollment: maxSize, Slot: &slot}
}

func TestStudentScheduleInlineSections(t *testing.T) {
	svc := NewStudentScheduleService(nil, nil, zap.NewNop())

	resp, err := svc.Schedule(context.Background(), dto.StudentScheduleRequest{
		Sections: []*engine.Section{
			placedSection("alg-1", "alg", "3", 30),
			placedSection("bio-1", "bio", "3", 30),
		},
		Students: []dto.StudentInput{{
			ID: "s-1",
			Requests: []dto.CourseRequestInput{
				{CourseID: "alg", Priority: 2},
				{CourseID: "bio", Priority: 1},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)
	assert.Equal(t, map[string]string{"3": "bio-1"}, resp.Students[0].Schedule)
	assert.Equal(t, []engine.CourseRequest{{CourseID: "alg", Priority: 2}}, resp.Students[0].Conflicts)
	assert.Equal(t, 1, resp.Conflicts)
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, "alg-1", resp.Sections[0].SectionID)
	assert.Equal(t, 0, resp.Sections[0].Enrollment)
	assert.Equal(t, 1, resp.Sections[1].Enrollment)
}

func TestStudentScheduleRequiresSource(t *testing.T) {
	svc := NewStudentScheduleService(nil, nil, nil)
	_, err := svc.Schedule(context.Background(), dto.StudentScheduleRequest{
		Students: []dto.StudentInput{{ID: "s-1", Requests: []dto.CourseRequestInput{{CourseID: "alg"}}}},
	})
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Schedule(context.Background(), dto.StudentScheduleRequest{
		RunID:    "run-1",
		Students: []dto.StudentInput{{ID: "s-1", Requests: []dto.CourseRequestInput{{CourseID: "alg"}}}},
	})
	requireCode(t, err, appErrors.ErrServiceDisabled.Code)
}

func TestStudentScheduleAgainstStoredRun(t *testing.T) {
	store := newMemRunStore()
	runs := newMasterScheduleService(store, nil)
	generated, err := runs.Generate(context.Background(), mathScienceRequest(), "admin-1")
	require.NoError(t, err)

	students := make([]dto.StudentInput, 0, 45)
	for i := 0; i < 45; i++ {
		students = append(students, dto.StudentInput{
			ID:       "s-" + string(rune('A'+i)),
			Requests: []dto.CourseRequestInput{{CourseID: "alg1", Priority: 1}, {CourseID: "bio", Priority: 2}},
		})
	}

	svc := NewStudentScheduleService(runs, nil, zap.NewNop())
	resp, err := svc.Schedule(context.Background(), dto.StudentScheduleRequest{RunID: generated.RunID, Students: students})
	require.NoError(t, err)
	assert.Equal(t, generated.RunID, resp.RunID)
	require.Len(t, resp.Students, 45)

	seated := 0
	for _, sec := range resp.Sections {
		assert.LessOrEqual(t, sec.Enrollment, sec.MaxSize)
		if sec.CourseID == "alg1" {
			seated += sec.Enrollment
		}
	}
	assert.Equal(t, 45, seated)

	// The stored run keeps the generator's projected enrollment.
	again, err := runs.LoadResult(context.Background(), generated.RunID)
	require.NoError(t, err)
	for _, sec := range again.Sections {
		if sec.CourseID == "alg1" {
			assert.Equal(t, 20, sec.Enrollment)
		}
	}
}

func TestStudentScheduleUnknownRun(t *testing.T) {
	runs := newMasterScheduleService(newMemRunStore(), nil)
	svc := NewStudentScheduleService(runs, nil, nil)
	_, err := svc.Schedule(context.Background(), dto.StudentScheduleRequest{
		RunID:    "missing",
		Students: []dto.StudentInput{{ID: "s-1", Requests: []dto.CourseRequestInput{{CourseID: "alg"}}}},
	})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}
