package dto

import "github.com/noah-isme/sma-master-scheduler/internal/engine"

// CourseRequestInput is one prioritised course request. Lower priority wins.
type CourseRequestInput struct {
	CourseID string `json:"courseId" validate:"required"`
	Priority int    `json:"priority" validate:"min=0"`
}

// StudentInput describes a student to seat.
type StudentInput struct {
	ID       string               `json:"id" validate:"required"`
	Name     string               `json:"name"`
	Grade    int                  `json:"grade" validate:"min=0,max=13"`
	Requests []CourseRequestInput `json:"requests" validate:"required,min=1,dive"`
}

// StudentScheduleRequest seats students into the sections of a finished run
// or into an inline section list.
type StudentScheduleRequest struct {
	RunID    string            `json:"runId" validate:"required_without=Sections"`
	Sections []*engine.Section `json:"sections" validate:"required_without=RunID"`
	Students []StudentInput    `json:"students" validate:"required,min=1,dive"`
}

// ToEngine converts the student list.
func (r StudentScheduleRequest) ToEngine() []engine.Student {
	out := make([]engine.Student, 0, len(r.Students))
	for _, s := range r.Students {
		reqs := make([]engine.CourseRequest, 0, len(s.Requests))
		for _, req := range s.Requests {
			reqs = append(reqs, engine.CourseRequest{CourseID: req.CourseID, Priority: req.Priority})
		}
		out = append(out, engine.Student{ID: s.ID, Name: s.Name, Grade: s.Grade, Requests: reqs})
	}
	return out
}

// StudentScheduleEntry maps display period keys to section ids for one student.
type StudentScheduleEntry struct {
	StudentID string                 `json:"studentId"`
	Schedule  map[string]string      `json:"schedule"`
	Conflicts []engine.CourseRequest `json:"conflicts"`
}

// SectionEnrollment reports the seated count of a section.
type SectionEnrollment struct {
	SectionID  string `json:"sectionId"`
	CourseID   string `json:"courseId"`
	Period     string `json:"period"`
	Enrollment int    `json:"enrollment"`
	MaxSize    int    `json:"maxSize"`
}

// StudentScheduleResponse is the outcome of seating.
type StudentScheduleResponse struct {
	RunID     string                 `json:"runId,omitempty"`
	Students  []StudentScheduleEntry `json:"students"`
	Sections  []SectionEnrollment    `json:"sections"`
	Conflicts int                    `json:"conflicts"`
}
