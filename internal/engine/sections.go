package engine

import (
	"fmt"
	"sort"
)

const noTeacherReason = "No Teacher"

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (rc *runContext) courseMaxSize(c Course) int {
	return courseMaxSize(rc.cfg, c)
}

func courseMaxSize(cfg *Config, c Course) int {
	if c.MaxSize > 0 {
		return c.MaxSize
	}
	return cfg.MaxClassSize
}

// sectionCounts decides how many sections each course gets. slots is the
// number of teaching slots a student fills across all terms; demand is the
// elective seat total those slots leave after core courses.
func sectionCounts(cfg *Config, slots int) (counts map[string]int, demand int) {
	students := cfg.StudentCount
	var core, electives []Course
	for _, c := range cfg.Courses {
		if c.Required {
			core = append(core, c)
		} else {
			electives = append(electives, c)
		}
	}

	counts = make(map[string]int, len(cfg.Courses))
	for _, c := range core {
		n := c.Sections
		if n <= 0 {
			n = ceilDiv(students, courseMaxSize(cfg, c))
		}
		if n < 1 {
			n = 1
		}
		counts[c.ID] = n
	}

	// Every student fills each remaining teaching slot with an elective.
	open := slots - len(core)
	if open < 0 {
		open = 0
	}
	demand = students * open
	if len(electives) > 0 {
		share := ceilDiv(demand, len(electives))
		for _, c := range electives {
			n := c.Sections
			if n <= 0 {
				n = ceilDiv(share, courseMaxSize(cfg, c))
			}
			if n < 1 {
				n = 1
			}
			counts[c.ID] = n
		}
	}
	return counts, demand
}

// SectionCount reports how many sections cfg expands to without placing
// anything. It fails with the same configuration errors as Run.
func SectionCount(cfg Config) (int, error) {
	if err := normalizeConfig(&cfg); err != nil {
		return 0, err
	}
	strategy, err := NewStrategy(cfg.ScheduleType)
	if err != nil {
		return 0, err
	}
	grid, _, err := BuildTimeGrid(cfg.Grid)
	if err != nil {
		return 0, err
	}
	counts, _ := sectionCounts(&cfg, len(grid.TeachingPeriods())*len(strategy.Terms()))
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// generateSections expands courses into sections, sizes them, and assigns
// teachers and default rooms.
func generateSections(rc *runContext) {
	students := rc.cfg.StudentCount
	var electives []Course
	for _, c := range rc.cfg.Courses {
		if !c.Required {
			electives = append(electives, c)
		}
	}
	counts, demand := sectionCounts(rc.cfg, len(rc.grid.TeachingPeriods())*len(rc.strategy.Terms()))

	rc.byID = make(map[string]*Section)
	rc.byCourse = make(map[string][]*Section)
	for _, c := range rc.cfg.Courses {
		n := counts[c.ID]
		maxSize := rc.courseMaxSize(c)
		enrollment := 0
		if c.Required {
			enrollment = ceilDiv(students, n)
			if enrollment > maxSize {
				enrollment = maxSize
			}
		}
		for i := 1; i <= n; i++ {
			sec := &Section{
				ID:          fmt.Sprintf("%s-%d", c.ID, i),
				CourseID:    c.ID,
				CourseName:  c.Name,
				SectionNum:  i,
				Enrollment:  enrollment,
				MaxSize:     maxSize,
				Department:  c.Department,
				RoomType:    normalizeRoomType(c.RoomType),
				IsCore:      c.Required,
				IsSingleton: n == 1,
				CohortID:    c.CohortID,
				CoTeacherID: c.CoTeacherID,
			}
			rc.sections = append(rc.sections, sec)
			rc.byID[sec.ID] = sec
			rc.byCourse[c.ID] = append(rc.byCourse[c.ID], sec)
		}
	}

	distributeElectiveSeats(rc, electives, demand)

	for id, size := range rc.cfg.SizeOverrides {
		sec, ok := rc.byID[id]
		if !ok || size < 0 {
			continue
		}
		if size > sec.MaxSize {
			size = sec.MaxSize
		}
		sec.Enrollment = size
	}

	assignTeachers(rc)
}

// distributeElectiveSeats splits elective demand evenly across all elective
// sections. The remainder goes one seat per course per pass in course-id
// order so no course is starved.
func distributeElectiveSeats(rc *runContext, electives []Course, demand int) {
	if len(electives) == 0 || demand <= 0 {
		return
	}
	total := 0
	for _, c := range electives {
		total += len(rc.byCourse[c.ID])
	}
	base, remainder := demand/total, demand%total

	ordered := make([]Course, len(electives))
	copy(ordered, electives)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, c := range ordered {
		for _, sec := range rc.byCourse[c.ID] {
			sec.Enrollment = base
		}
	}
	next := make(map[string]int, len(ordered))
	for remainder > 0 {
		progressed := false
		for _, c := range ordered {
			if remainder == 0 {
				break
			}
			secs := rc.byCourse[c.ID]
			if next[c.ID] >= len(secs) {
				continue
			}
			secs[next[c.ID]].Enrollment++
			next[c.ID]++
			remainder--
			progressed = true
		}
		if !progressed {
			break
		}
	}
	for _, c := range ordered {
		for _, sec := range rc.byCourse[c.ID] {
			if sec.Enrollment > sec.MaxSize {
				sec.Enrollment = sec.MaxSize
			}
		}
	}
}

// assignTeachers visits sections in shuffled order and hands each to the
// least-loaded teacher of its department, falling back to any teacher.
func assignTeachers(rc *runContext) {
	order := make([]*Section, len(rc.sections))
	copy(order, rc.sections)
	rc.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	assigned := make(map[string]int, len(rc.teachers))
	for _, sec := range order {
		var pool []Teacher
		for _, t := range rc.teachers {
			if t.teaches(sec.Department) && t.ID != sec.CoTeacherID {
				pool = append(pool, t)
			}
		}
		if len(pool) == 0 {
			for _, t := range rc.teachers {
				if t.ID != sec.CoTeacherID {
					pool = append(pool, t)
				}
			}
		}
		if len(pool) == 0 {
			sec.flag(noTeacherReason)
			rc.conflict(Conflict{
				Type:      ConflictUnscheduled,
				Message:   fmt.Sprintf("%s section %d: no teacher available", sec.CourseName, sec.SectionNum),
				SectionID: sec.ID,
			})
			continue
		}

		best := pool[0]
		for _, t := range pool[1:] {
			if assigned[t.ID] < assigned[best.ID] {
				best = t
			}
		}
		assigned[best.ID]++
		sec.TeacherID = best.ID
		if room := rc.ledger.OwnedRoom(best.ID); room != "" {
			sec.RoomID = room
		}
	}
}
