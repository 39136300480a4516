package engine

import "sort"

// Student is a learner with prioritised course requests.
type Student struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Grade    int             `json:"grade,omitempty"`
	Requests []CourseRequest `json:"requests"`
}

// CourseRequest asks for a seat in a course. Lower Priority wins.
type CourseRequest struct {
	CourseID string `json:"courseId"`
	Priority int    `json:"priority"`
}

// StudentSchedule maps display period keys to the seated section.
type StudentSchedule struct {
	StudentID string              `json:"studentId"`
	Schedule  map[string]*Section `json:"schedule"`
	Conflicts []CourseRequest     `json:"conflicts"`
}

// ScheduleStudents seats students into finished sections by request
// priority and overwrites every candidate section's enrollment with the
// seated count. A repeated request for a course the student already holds
// is dropped. cfg is accepted for future seating rules.
func ScheduleStudents(sections []*Section, students []Student, cfg *Config) []StudentSchedule {
	_ = cfg

	candidates := make(map[string][]*Section)
	seated := make(map[*Section]int)
	for _, sec := range sections {
		if sec == nil || sec.HasConflict || !sec.Placed() {
			continue
		}
		candidates[sec.CourseID] = append(candidates[sec.CourseID], sec)
		seated[sec] = 0
	}

	out := make([]StudentSchedule, 0, len(students))
	for _, st := range students {
		requests := make([]CourseRequest, len(st.Requests))
		copy(requests, st.Requests)
		sort.SliceStable(requests, func(i, j int) bool { return requests[i].Priority < requests[j].Priority })

		result := StudentSchedule{
			StudentID: st.ID,
			Schedule:  make(map[string]*Section),
			Conflicts: []CourseRequest{},
		}
		holds := make(map[string]struct{}, len(requests))
		for _, req := range requests {
			if _, dup := holds[req.CourseID]; dup {
				continue
			}
			var chosen *Section
			for _, sec := range candidates[req.CourseID] {
				if seated[sec] >= sec.MaxSize {
					continue
				}
				if _, busy := result.Schedule[sec.PeriodKey()]; busy {
					continue
				}
				chosen = sec
				break
			}
			if chosen == nil {
				result.Conflicts = append(result.Conflicts, req)
				continue
			}
			seated[chosen]++
			holds[req.CourseID] = struct{}{}
			result.Schedule[chosen.PeriodKey()] = chosen
		}
		out = append(out, result)
	}

	for sec, n := range seated {
		sec.Enrollment = n
	}
	return out
}
