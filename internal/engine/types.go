package engine

// PeriodID identifies a period in the bell schedule. Teaching periods use
// their ordinal ("1", "2", ...); inserted blocks use symbolic ids.
type PeriodID string

// Symbolic ids for inserted blocks.
const (
	PeriodWIN    PeriodID = "WIN"
	PeriodRecess PeriodID = "RECESS"
)

// PeriodType tags the semantic role of a period.
type PeriodType string

const (
	PeriodTypeClass      PeriodType = "class"
	PeriodTypeSplitLunch PeriodType = "split_lunch"
	PeriodTypeUnitLunch  PeriodType = "unit_lunch"
	PeriodTypeMultiLunch PeriodType = "multi_lunch"
	PeriodTypeWIN        PeriodType = "win"
	PeriodTypeRecess     PeriodType = "recess"
)

// Teaching reports whether sections may be placed into a period of this type.
func (t PeriodType) Teaching() bool {
	switch t {
	case PeriodTypeClass, PeriodTypeSplitLunch, PeriodTypeMultiLunch:
		return true
	default:
		return false
	}
}

// Period is one block of the time grid. Start and End are minutes after midnight.
type Period struct {
	ID       PeriodID   `json:"id"`
	Label    string     `json:"label"`
	Type     PeriodType `json:"type"`
	Start    int        `json:"start"`
	End      int        `json:"end"`
	Duration int        `json:"duration"`
}

// RoomType is the facility class a course requires.
type RoomType string

const (
	RoomTypeRegular RoomType = "regular"
	RoomTypeLab     RoomType = "lab"
	RoomTypeGym     RoomType = "gym"
)

func normalizeRoomType(t RoomType) RoomType {
	if t == "" {
		return RoomTypeRegular
	}
	return t
}

// Teacher is a member of staff who can be assigned sections.
type Teacher struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Departments []string `json:"departments"`
	Floater     bool     `json:"floater"`
	// PlanPeriods overrides the school-wide plan period count when positive.
	PlanPeriods int    `json:"planPeriods,omitempty"`
	HomeRoomID  string `json:"homeRoomId,omitempty"`
}

func (t Teacher) teaches(department string) bool {
	for _, d := range t.Departments {
		if d == department {
			return true
		}
	}
	return false
}

// Room is a bookable space. Capacity 0 means unlimited.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     RoomType `json:"type"`
	Capacity int      `json:"capacity,omitempty"`
}

func (r Room) fits(t RoomType, enrollment int) bool {
	if normalizeRoomType(r.Type) != normalizeRoomType(t) {
		return false
	}
	return r.Capacity <= 0 || enrollment <= r.Capacity
}

// Course is a catalogue entry expanded into sections.
type Course struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Required   bool     `json:"required"`
	Sections   int      `json:"sections,omitempty"`
	MaxSize    int      `json:"maxSize,omitempty"`
	RoomType   RoomType `json:"roomType,omitempty"`
	// CoTeacherID, when set, co-teaches every section of the course.
	CoTeacherID string `json:"coTeacherId,omitempty"`
	CohortID    string `json:"cohortId,omitempty"`
}

// Section is a concrete offering of a course. It is created by the section
// generator and afterwards only mutated through the Ledger.
type Section struct {
	ID             string   `json:"id"`
	CourseID       string   `json:"courseId"`
	CourseName     string   `json:"courseName"`
	SectionNum     int      `json:"sectionNum"`
	Enrollment     int      `json:"enrollment"`
	MaxSize        int      `json:"maxSize"`
	Department     string   `json:"department"`
	RoomType       RoomType `json:"roomType"`
	IsCore         bool     `json:"isCore"`
	IsSingleton    bool     `json:"isSingleton"`
	CohortID       string   `json:"cohortId,omitempty"`
	TeacherID      string   `json:"teacherId,omitempty"`
	CoTeacherID    string   `json:"coTeacherId,omitempty"`
	RoomID         string   `json:"roomId,omitempty"`
	Slot           *Slot    `json:"period,omitempty"`
	Term           Term     `json:"term,omitempty"`
	Locked         bool     `json:"locked"`
	HasConflict    bool     `json:"hasConflict"`
	ConflictReason string   `json:"conflictReason,omitempty"`
	LunchWave      int      `json:"lunchWave,omitempty"`
}

// Placed reports whether the section currently occupies a slot.
func (s *Section) Placed() bool {
	return s != nil && s.Slot != nil
}

// PeriodKey is the display encoding of the section's slot, or "" when unplaced.
func (s *Section) PeriodKey() string {
	if s.Slot == nil {
		return ""
	}
	return s.Slot.String()
}

func (s *Section) flag(reason string) {
	s.HasConflict = true
	s.ConflictReason = reason
}

// Reservation is a non-section reason a teacher slot is occupied.
type Reservation string

const (
	ReservationLunch   Reservation = "LUNCH"
	ReservationPLC     Reservation = "PLC"
	ReservationBlocked Reservation = "BLOCKED"
)

// PlcGroup is a set of teachers reserved together in one period.
type PlcGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Period     PeriodID `json:"period"`
	TeacherIDs []string `json:"teacherIds"`
}

// TeacherAvailability blocks a teacher out of the listed periods. Periods
// are display slots ("3", "A-3"); a bare period id blocks every term.
type TeacherAvailability struct {
	TeacherID string      `json:"teacherId"`
	Periods   []string    `json:"periods"`
	Reason    Reservation `json:"reason,omitempty"`
}

// ConstraintType enumerates declarative pre-commitments.
type ConstraintType string

const (
	ConstraintLockedPeriod       ConstraintType = "locked_period"
	ConstraintTeacherUnavailable ConstraintType = "teacher_unavailable"
)

// Constraint is a pre-existing rule applied before placement.
type Constraint struct {
	Type      ConstraintType `json:"type"`
	SectionID string         `json:"sectionId,omitempty"`
	TeacherID string         `json:"teacherId,omitempty"`
	// Period is a display slot ("3", "S1-3"); a bare period id blocks every term.
	Period string `json:"period"`
}

// LockedSection pins a section to a slot (and optionally teacher and room)
// when regenerating.
type LockedSection struct {
	SectionID   string `json:"sectionId"`
	Period      string `json:"period"`
	TeacherID   string `json:"teacherId,omitempty"`
	CoTeacherID string `json:"coTeacherId,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
}

// ConflictType classifies reported conflicts.
type ConflictType string

const (
	ConflictCoverage      ConflictType = "coverage"
	ConflictPlanViolation ConflictType = "plan_violation"
	ConflictUnscheduled   ConflictType = "unscheduled"
)

// Conflict is a structured, human-readable problem in the result.
type Conflict struct {
	Type      ConflictType `json:"type"`
	Message   string       `json:"message"`
	SectionID string       `json:"sectionId,omitempty"`
	TeacherID string       `json:"teacherId,omitempty"`
}

// LogEntry is one step of the placement history.
type LogEntry struct {
	Seq       int    `json:"seq"`
	Action    string `json:"action"`
	SectionID string `json:"sectionId,omitempty"`
	Slot      string `json:"slot,omitempty"`
	Cost      int    `json:"cost,omitempty"`
	Message   string `json:"message"`
}

// PeriodCoverage is the student accounting for one period.
type PeriodCoverage struct {
	PeriodID     PeriodID   `json:"periodId"`
	Label        string     `json:"label"`
	Type         PeriodType `json:"type"`
	SeatsInClass int        `json:"seatsInClass"`
	AtLunch      int        `json:"atLunch"`
	AtLunchLabel string     `json:"atLunchLabel,omitempty"`
	Unaccounted  int        `json:"unaccounted"`
}

// Stats summarises a run.
type Stats struct {
	TotalSections     int `json:"totalSections"`
	ScheduledSections int `json:"scheduledSections"`
	ConflictSections  int `json:"conflictSections"`
	TeacherCount      int `json:"teacherCount"`
	RoomCount         int `json:"roomCount"`
	TotalStudents     int `json:"totalStudents"`
	Conflicts         int `json:"conflicts"`
	Bumps             int `json:"bumps"`
}
