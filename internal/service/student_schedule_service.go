package service

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

type runResultLoader interface {
	LoadResult(ctx context.Context, id string) (*engine.Result, error)
}

// StudentScheduleService seats students into the sections of a master schedule.
type StudentScheduleService struct {
	runs     runResultLoader
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStudentScheduleService constructs the service. runs may be nil when
// only inline section lists are accepted.
func NewStudentScheduleService(runs runResultLoader, validate *validator.Validate, logger *zap.Logger) *StudentScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentScheduleService{runs: runs, validate: validate, logger: logger}
}

// Schedule seats the requested students. Enrollment counts in the response
// are the seated counts, not the generator's projections.
func (s *StudentScheduleService) Schedule(ctx context.Context, req dto.StudentScheduleRequest) (*dto.StudentScheduleResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student schedule payload")
	}

	sections := req.Sections
	if req.RunID != "" {
		if s.runs == nil {
			return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "run store is disabled")
		}
		result, err := s.runs.LoadResult(ctx, req.RunID)
		if err != nil {
			return nil, err
		}
		sections = copySections(result.Sections)
	}

	schedules := engine.ScheduleStudents(sections, req.ToEngine(), nil)

	resp := &dto.StudentScheduleResponse{
		RunID:    req.RunID,
		Students: make([]dto.StudentScheduleEntry, 0, len(schedules)),
		Sections: make([]dto.SectionEnrollment, 0, len(sections)),
	}
	for _, sched := range schedules {
		entry := dto.StudentScheduleEntry{
			StudentID: sched.StudentID,
			Schedule:  make(map[string]string, len(sched.Schedule)),
			Conflicts: sched.Conflicts,
		}
		for period, sec := range sched.Schedule {
			entry.Schedule[period] = sec.ID
		}
		resp.Conflicts += len(sched.Conflicts)
		resp.Students = append(resp.Students, entry)
	}
	for _, sec := range sections {
		if sec == nil || !sec.Placed() || sec.HasConflict {
			continue
		}
		resp.Sections = append(resp.Sections, dto.SectionEnrollment{
			SectionID:  sec.ID,
			CourseID:   sec.CourseID,
			Period:     sec.PeriodKey(),
			Enrollment: sec.Enrollment,
			MaxSize:    sec.MaxSize,
		})
	}
	sort.Slice(resp.Sections, func(i, j int) bool { return resp.Sections[i].SectionID < resp.Sections[j].SectionID })

	s.logger.Info("students scheduled",
		zap.String("run_id", req.RunID),
		zap.Int("students", len(schedules)),
		zap.Int("unmet_requests", resp.Conflicts),
	)
	return resp, nil
}

// copySections detaches sections from a possibly shared result before
// their enrollment is overwritten.
func copySections(in []*engine.Section) []*engine.Section {
	out := make([]*engine.Section, 0, len(in))
	for _, sec := range in {
		if sec == nil {
			continue
		}
		cp := *sec
		out = append(out, &cp)
	}
	return out
}
