package dto

import (
	"time"

	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	"github.com/noah-isme/sma-master-scheduler/internal/models"
)

// PeriodRequest is an explicit bell-schedule entry. Times are minutes after midnight.
type PeriodRequest struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	Type  string `json:"type" validate:"omitempty,oneof=class split_lunch unit_lunch multi_lunch"`
	Start int    `json:"start" validate:"min=0,max=1440"`
	End   int    `json:"end" validate:"min=0,max=1440,gtfield=Start"`
}

// BlockRequest configures a WIN or recess block.
type BlockRequest struct {
	Enabled     bool   `json:"enabled"`
	AfterPeriod int    `json:"afterPeriod" validate:"min=0"`
	Duration    int    `json:"duration" validate:"min=0,max=240"`
	Mode        string `json:"mode" validate:"omitempty,oneof=insert replace"`
}

// LunchRequest configures the lunch arrangement.
type LunchRequest struct {
	Style        string `json:"style" validate:"omitempty,oneof=none unit split multi"`
	Period       int    `json:"period" validate:"min=0"`
	Periods      []int  `json:"periods" validate:"omitempty,dive,min=1"`
	Waves        int    `json:"waves" validate:"min=0,max=8"`
	WaveDuration int    `json:"waveDuration" validate:"min=0,max=120"`
	MinClassTime int    `json:"minClassTime" validate:"min=0"`
}

// GridRequest describes the day either as explicit periods or as a generated grid.
type GridRequest struct {
	Periods      []PeriodRequest `json:"periods" validate:"omitempty,dive"`
	PeriodCount  int             `json:"periodCount" validate:"required_without=Periods,gte=0,max=16"`
	Mode         string          `json:"mode" validate:"omitempty,oneof=exact fit"`
	DayStart     int             `json:"dayStart" validate:"min=0,max=1440"`
	DayEnd       int             `json:"dayEnd" validate:"min=0,max=1440"`
	PeriodLength int             `json:"periodLength" validate:"min=0,max=480"`
	PassingTime  int             `json:"passingTime" validate:"min=0,max=60"`
	WIN          BlockRequest    `json:"win"`
	Recess       BlockRequest    `json:"recess"`
	Lunch        LunchRequest    `json:"lunch"`
}

// TeacherRequest describes a staff member.
type TeacherRequest struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name"`
	Departments []string `json:"departments" validate:"omitempty,dive,required"`
	Floater     bool     `json:"floater"`
	PlanPeriods int      `json:"planPeriods" validate:"min=0"`
	HomeRoomID  string   `json:"homeRoomId"`
}

// RoomRequest describes a bookable room. Capacity 0 means unlimited.
type RoomRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Type     string `json:"type" validate:"omitempty,oneof=regular lab gym"`
	Capacity int    `json:"capacity" validate:"min=0"`
}

// CourseInput describes a catalogue course.
type CourseInput struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Required    bool   `json:"required"`
	Sections    int    `json:"sections" validate:"min=0,max=100"`
	MaxSize     int    `json:"maxSize" validate:"min=0"`
	RoomType    string `json:"roomType" validate:"omitempty,oneof=regular lab gym"`
	CoTeacherID string `json:"coTeacherId"`
	CohortID    string `json:"cohortId"`
}

// PlcGroupRequest is an explicit PLC group.
type PlcGroupRequest struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name"`
	Period     string   `json:"period" validate:"required"`
	TeacherIDs []string `json:"teacherIds" validate:"required,min=1,dive,required"`
}

// ConstraintRequest is a pre-existing rule.
type ConstraintRequest struct {
	Type      string `json:"type" validate:"required,oneof=locked_period teacher_unavailable"`
	SectionID string `json:"sectionId" validate:"required_if=Type locked_period"`
	TeacherID string `json:"teacherId" validate:"required_if=Type teacher_unavailable"`
	Period    string `json:"period" validate:"required"`
}

// AvailabilityRequest blocks a teacher out of periods.
type AvailabilityRequest struct {
	TeacherID string   `json:"teacherId" validate:"required"`
	Periods   []string `json:"periods" validate:"required,min=1,dive,required"`
	Reason    string   `json:"reason" validate:"omitempty,oneof=LUNCH PLC BLOCKED"`
}

// LockedSectionRequest pins a section when regenerating.
type LockedSectionRequest struct {
	SectionID   string `json:"sectionId" validate:"required"`
	Period      string `json:"period" validate:"required"`
	TeacherID   string `json:"teacherId"`
	CoTeacherID string `json:"coTeacherId"`
	RoomID      string `json:"roomId"`
}

// MasterScheduleRequest is the full engine input accepted by the API.
type MasterScheduleRequest struct {
	ScheduleType   string                 `json:"scheduleType" validate:"omitempty,oneof=standard ab_block 4x4_block trimester"`
	Grid           GridRequest            `json:"grid"`
	Teachers       []TeacherRequest       `json:"teachers" validate:"omitempty,dive"`
	Rooms          []RoomRequest          `json:"rooms" validate:"omitempty,dive"`
	Courses        []CourseInput          `json:"courses" validate:"required,min=1,dive"`
	StudentCount   int                    `json:"studentCount" validate:"min=0,max=20000"`
	MaxClassSize   int                    `json:"maxClassSize" validate:"min=0,max=500"`
	PlanPeriods    int                    `json:"planPeriods" validate:"min=0"`
	PLCEnabled     bool                   `json:"plcEnabled"`
	PLCGroups      []PlcGroupRequest      `json:"plcGroups" validate:"omitempty,dive"`
	Constraints    []ConstraintRequest    `json:"constraints" validate:"omitempty,dive"`
	Availability   []AvailabilityRequest  `json:"availability" validate:"omitempty,dive"`
	LockedSections []LockedSectionRequest `json:"lockedSections" validate:"omitempty,dive"`
	SizeOverrides  map[string]int         `json:"sizeOverrides" validate:"omitempty,dive,min=0"`
	MaxTeacherLoad int                    `json:"maxTeacherLoad" validate:"min=0"`
	Seed           *int64                 `json:"seed"`
}

// ToEngine converts the request into an engine configuration.
func (r MasterScheduleRequest) ToEngine(defaultSeed int64) engine.Config {
	cfg := engine.Config{
		ScheduleType:   engine.ScheduleType(r.ScheduleType),
		Grid:           r.Grid.toEngine(),
		StudentCount:   r.StudentCount,
		MaxClassSize:   r.MaxClassSize,
		PlanPeriods:    r.PlanPeriods,
		PLCEnabled:     r.PLCEnabled,
		SizeOverrides:  r.SizeOverrides,
		MaxTeacherLoad: r.MaxTeacherLoad,
		Seed:           defaultSeed,
	}
	if r.Seed != nil {
		cfg.Seed = *r.Seed
	}
	for _, t := range r.Teachers {
		cfg.Teachers = append(cfg.Teachers, engine.Teacher{
			ID:          t.ID,
			Name:        t.Name,
			Departments: t.Departments,
			Floater:     t.Floater,
			PlanPeriods: t.PlanPeriods,
			HomeRoomID:  t.HomeRoomID,
		})
	}
	for _, room := range r.Rooms {
		cfg.Rooms = append(cfg.Rooms, engine.Room{ID: room.ID, Name: room.Name, Type: engine.RoomType(room.Type), Capacity: room.Capacity})
	}
	for _, c := range r.Courses {
		cfg.Courses = append(cfg.Courses, engine.Course{
			ID:          c.ID,
			Name:        c.Name,
			Department:  c.Department,
			Required:    c.Required,
			Sections:    c.Sections,
			MaxSize:     c.MaxSize,
			RoomType:    engine.RoomType(c.RoomType),
			CoTeacherID: c.CoTeacherID,
			CohortID:    c.CohortID,
		})
	}
	for _, g := range r.PLCGroups {
		cfg.PLCGroups = append(cfg.PLCGroups, engine.PlcGroup{ID: g.ID, Name: g.Name, Period: engine.PeriodID(g.Period), TeacherIDs: g.TeacherIDs})
	}
	for _, c := range r.Constraints {
		cfg.Constraints = append(cfg.Constraints, engine.Constraint{
			Type:      engine.ConstraintType(c.Type),
			SectionID: c.SectionID,
			TeacherID: c.TeacherID,
			Period:    c.Period,
		})
	}
	for _, a := range r.Availability {
		cfg.Availability = append(cfg.Availability, engine.TeacherAvailability{
			TeacherID: a.TeacherID,
			Periods:   append([]string(nil), a.Periods...),
			Reason:    engine.Reservation(a.Reason),
		})
	}
	cfg.LockedSections = LockedSectionsToEngine(r.LockedSections)
	return cfg
}

// LockedSectionsToEngine converts lock requests.
func LockedSectionsToEngine(in []LockedSectionRequest) []engine.LockedSection {
	if len(in) == 0 {
		return nil
	}
	out := make([]engine.LockedSection, 0, len(in))
	for _, l := range in {
		out = append(out, engine.LockedSection{
			SectionID:   l.SectionID,
			Period:      l.Period,
			TeacherID:   l.TeacherID,
			CoTeacherID: l.CoTeacherID,
			RoomID:      l.RoomID,
		})
	}
	return out
}

func (g GridRequest) toEngine() engine.GridConfig {
	cfg := engine.GridConfig{
		PeriodCount:  g.PeriodCount,
		Mode:         engine.GenerationMode(g.Mode),
		DayStart:     g.DayStart,
		DayEnd:       g.DayEnd,
		PeriodLength: g.PeriodLength,
		PassingTime:  g.PassingTime,
		WIN:          g.WIN.toEngine(),
		Recess:       g.Recess.toEngine(),
		Lunch: engine.LunchConfig{
			Style:        engine.LunchStyle(g.Lunch.Style),
			Period:       g.Lunch.Period,
			Periods:      g.Lunch.Periods,
			Waves:        g.Lunch.Waves,
			WaveDuration: g.Lunch.WaveDuration,
			MinClassTime: g.Lunch.MinClassTime,
		},
	}
	for _, p := range g.Periods {
		cfg.Periods = append(cfg.Periods, engine.Period{
			ID:    engine.PeriodID(p.ID),
			Label: p.Label,
			Type:  engine.PeriodType(p.Type),
			Start: p.Start,
			End:   p.End,
		})
	}
	return cfg
}

func (b BlockRequest) toEngine() engine.BlockConfig {
	return engine.BlockConfig{Enabled: b.Enabled, AfterPeriod: b.AfterPeriod, Duration: b.Duration, Mode: engine.BlockMode(b.Mode)}
}

// EstimatedSections is the number of sections the request expands to,
// computed with the engine's own sizing rules. A request the engine would
// reject as misconfigured reports zero and fails later in Run.
func (r MasterScheduleRequest) EstimatedSections() int {
	n, err := engine.SectionCount(r.ToEngine(0))
	if err != nil {
		return 0
	}
	return n
}

// MasterScheduleResponse wraps a synchronous engine result.
type MasterScheduleResponse struct {
	RunID  string         `json:"runId,omitempty"`
	Result *engine.Result `json:"result"`
}

// RunSubmitResponse is returned when a run is queued.
type RunSubmitResponse struct {
	ID     string           `json:"id"`
	Status models.RunStatus `json:"status"`
	Seed   int64            `json:"seed"`
}

// RunResponse describes a stored run.
type RunResponse struct {
	ID           string           `json:"id"`
	ParentRunID  *string          `json:"parentRunId,omitempty"`
	Status       models.RunStatus `json:"status"`
	ScheduleType string           `json:"scheduleType"`
	Seed         int64            `json:"seed"`
	Progress     int              `json:"progress"`
	Error        *string          `json:"error,omitempty"`
	CreatedBy    string           `json:"createdBy"`
	CreatedAt    time.Time        `json:"createdAt"`
	FinishedAt   *time.Time       `json:"finishedAt,omitempty"`
	Result       *engine.Result   `json:"result,omitempty"`
}

// RunListQuery filters GET /runs.
type RunListQuery struct {
	Status       string `form:"status" validate:"omitempty,oneof=QUEUED PROCESSING FINISHED FAILED"`
	ScheduleType string `form:"scheduleType" validate:"omitempty,oneof=standard ab_block 4x4_block trimester"`
	Page         int    `form:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// RegenerateRequest reruns a stored configuration with locked sections.
type RegenerateRequest struct {
	LockedSections []LockedSectionRequest `json:"lockedSections" validate:"omitempty,dive"`
	LockPlaced     []string               `json:"lockPlaced" validate:"omitempty,dive,required"`
	SizeOverrides  map[string]int         `json:"sizeOverrides" validate:"omitempty,dive,min=0"`
	Seed           *int64                 `json:"seed"`
	Async          bool                   `json:"async"`
}

// VariantsRequest runs several independent configurations at once.
type VariantsRequest struct {
	Variants map[string]MasterScheduleRequest `json:"variants" validate:"required,min=1,dive"`
}

// VariantResponse is the outcome of one variant.
type VariantResponse struct {
	Name   string         `json:"name"`
	Result *engine.Result `json:"result,omitempty"`
	Error  *VariantError  `json:"error,omitempty"`
}

// VariantError mirrors the API error shape for a failed variant.
type VariantError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VariantsResponse lists variant outcomes ordered by name.
type VariantsResponse struct {
	Variants []VariantResponse `json:"variants"`
}
