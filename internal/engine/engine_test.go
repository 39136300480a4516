package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

func sevenPeriods() GridConfig {
	return GridConfig{PeriodCount: 7, DayStart: 480, PeriodLength: 50, PassingTime: 5}
}

func mathScienceConfig() Config {
	return Config{
		Grid: sevenPeriods(),
		Teachers: []Teacher{
			{ID: "t-math", Name: "Ms. Rivera", Departments: []string{"Math"}},
			{ID: "t-sci", Name: "Mr. Okafor", Departments: []string{"Science"}},
		},
		Courses: []Course{
			{ID: "alg1", Name: "Algebra I", Department: "Math", Required: true, Sections: 2},
			{ID: "bio", Name: "Biology", Department: "Science", Required: true, Sections: 1},
		},
		StudentCount: 40,
		Seed:         42,
	}
}

func runEngine(t *testing.T, cfg Config) *Result {
	t.Helper()
	result, err := New(zap.NewNop()).Run(context.Background(), cfg)
	require.NoError(t, err)
	return result
}

func sectionByID(t *testing.T, result *Result, id string) *Section {
	t.Helper()
	for _, s := range result.Sections {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %s not found", id)
	return nil
}

func conflictsOfType(result *Result, typ ConflictType) []Conflict {
	var out []Conflict
	for _, c := range result.Conflicts {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func TestRunAssignsDepartmentTeachers(t *testing.T) {
	result := runEngine(t, mathScienceConfig())

	require.Len(t, result.Sections, 3)
	assert.Empty(t, result.Conflicts)
	for _, sec := range result.Sections {
		assert.True(t, sec.Placed(), sec.ID)
		if sec.CourseID == "alg1" {
			assert.Equal(t, "t-math", sec.TeacherID)
		} else {
			assert.Equal(t, "t-sci", sec.TeacherID)
		}
	}
	assert.Equal(t, 3, result.Stats.TotalSections)
	assert.Equal(t, 3, result.Stats.ScheduledSections)
	assert.Equal(t, 40, result.Stats.TotalStudents)
	assert.Len(t, result.TeacherSchedules["t-math"], 2)
}

func TestRunWithoutTeachersFlagsSections(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.Teachers = nil
	result := runEngine(t, cfg)

	first := result.Sections[0]
	assert.True(t, first.HasConflict)
	assert.Equal(t, "No Teacher", first.ConflictReason)
	assert.False(t, first.Placed())
	assert.Equal(t, 3, result.Stats.ConflictSections)
}

func TestRunReportsPlanViolation(t *testing.T) {
	result := runEngine(t, Config{
		Grid:        GridConfig{PeriodCount: 3, PeriodLength: 50},
		Teachers:    []Teacher{{ID: "t-1", Name: "Mr. Solo", Departments: []string{"Math"}}},
		Courses:     []Course{{ID: "geo", Name: "Geometry", Department: "Math", Required: true, Sections: 3}},
		PlanPeriods: 1,
	})

	for _, sec := range result.Sections {
		assert.True(t, sec.Placed())
	}
	violations := conflictsOfType(result, ConflictPlanViolation)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "has 0 free periods (needs 1 for Plan/PLC)")
	assert.Equal(t, "t-1", violations[0].TeacherID)
}

func TestRunOversizedSectionIsGridlocked(t *testing.T) {
	result := runEngine(t, Config{
		Grid:          sevenPeriods(),
		Teachers:      []Teacher{{ID: "t-1", Departments: []string{"Math"}}},
		Rooms:         []Room{{ID: "r-101", Type: RoomTypeRegular, Capacity: 20}},
		Courses:       []Course{{ID: "calc", Name: "Calculus", Department: "Math", Required: true, Sections: 1}},
		StudentCount:  30,
		SizeOverrides: map[string]int{"calc-1": 30},
	})

	sec := sectionByID(t, result, "calc-1")
	assert.Equal(t, 30, sec.Enrollment)
	assert.True(t, sec.HasConflict)
	assert.Equal(t, "Scheduling Gridlock", sec.ConflictReason)
	assert.False(t, sec.Placed())

	unscheduled := conflictsOfType(result, ConflictUnscheduled)
	require.Len(t, unscheduled, 1)
	assert.Contains(t, unscheduled[0].Message, "No valid slot found")
}

func TestRunGridlockReasonsPerScheduleType(t *testing.T) {
	reasons := map[ScheduleType]string{
		ScheduleStandard:   "Scheduling Gridlock",
		ScheduleABBlock:    "A/B Scheduling Gridlock",
		ScheduleFourByFour: "Semester Block Gridlock",
		ScheduleTrimester:  "Trimester Gridlock",
	}
	for kind, reason := range reasons {
		t.Run(string(kind), func(t *testing.T) {
			result := runEngine(t, Config{
				ScheduleType: kind,
				Grid:         GridConfig{PeriodCount: 1, PeriodLength: 50},
				Teachers:     []Teacher{{ID: "t-1", Departments: []string{"Art"}}},
				Courses:      []Course{{ID: "art", Department: "Art", Required: true, Sections: 4}},
			})
			flagged := 0
			for _, sec := range result.Sections {
				if sec.HasConflict {
					flagged++
					assert.Equal(t, reason, sec.ConflictReason)
				}
			}
			assert.Equal(t, 4-len(mustStrategy(t, kind).Terms()), flagged)
		})
	}
}

func mustStrategy(t *testing.T, kind ScheduleType) PlacementStrategy {
	t.Helper()
	s, err := NewStrategy(kind)
	require.NoError(t, err)
	return s
}

func TestRunNeverDoubleBooks(t *testing.T) {
	var teachers []Teacher
	var rooms []Room
	depts := []string{"Math", "Science", "English", "History", "Arts"}
	for i, d := range depts {
		teachers = append(teachers,
			Teacher{ID: fmt.Sprintf("t-%d-a", i), Departments: []string{d}},
			Teacher{ID: fmt.Sprintf("t-%d-b", i), Departments: []string{d}, Floater: i%2 == 0},
		)
		rooms = append(rooms, Room{ID: fmt.Sprintf("r-%d", i), Type: RoomTypeRegular, Capacity: 35})
	}
	rooms = append(rooms, Room{ID: "lab", Type: RoomTypeLab, Capacity: 30}, Room{ID: "r-extra", Type: RoomTypeRegular})
	courses := []Course{
		{ID: "alg", Department: "Math", Required: true},
		{ID: "bio", Department: "Science", Required: true, RoomType: RoomTypeLab, Sections: 3},
		{ID: "eng", Department: "English", Required: true},
		{ID: "hist", Department: "History", Required: true},
		{ID: "art", Department: "Arts"},
		{ID: "music", Department: "Arts", Sections: 1},
	}

	for _, kind := range ScheduleTypes {
		t.Run(string(kind), func(t *testing.T) {
			result := runEngine(t, Config{
				ScheduleType: kind,
				Grid:         sevenPeriods(),
				Teachers:     teachers,
				Rooms:        rooms,
				Courses:      courses,
				StudentCount: 120,
				PlanPeriods:  1,
				PLCEnabled:   true,
				Seed:         11,
			})

			type key struct {
				who  string
				slot Slot
			}
			seen := map[key]string{}
			for _, sec := range result.Sections {
				assert.LessOrEqual(t, sec.Enrollment, sec.MaxSize)
				if !sec.Placed() {
					continue
				}
				assert.False(t, sec.HasConflict)
				for _, who := range []string{sec.TeacherID, sec.CoTeacherID, "room:" + sec.RoomID} {
					if who == "" || who == "room:" {
						continue
					}
					k := key{who: who, slot: *sec.Slot}
					if other, dup := seen[k]; dup {
						t.Fatalf("%s double booked at %s by %s and %s", who, sec.Slot, other, sec.ID)
					}
					seen[k] = sec.ID
				}
				assert.Contains(t, mustStrategy(t, kind).Terms(), sec.Term)
			}
		})
	}
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	a := runEngine(t, mathScienceConfig())
	b := runEngine(t, mathScienceConfig())
	for i := range a.Sections {
		assert.Equal(t, a.Sections[i].PeriodKey(), b.Sections[i].PeriodKey())
		assert.Equal(t, a.Sections[i].TeacherID, b.Sections[i].TeacherID)
	}
}

func TestRunFourByFourBalancesSemesters(t *testing.T) {
	result := runEngine(t, Config{
		ScheduleType: ScheduleFourByFour,
		Grid:         GridConfig{PeriodCount: 2, PeriodLength: 90},
		Teachers:     []Teacher{{ID: "t-1", Departments: []string{"PE"}}},
		Courses:      []Course{{ID: "pe", Department: "PE", Required: true, Sections: 4}},
	})
	counts := map[Term]int{}
	for _, sec := range result.Sections {
		require.True(t, sec.Placed())
		counts[sec.Term]++
	}
	assert.Equal(t, map[Term]int{TermS1: 2, TermS2: 2}, counts)
	assert.Contains(t, result.TeacherSchedules["t-1"], "S1-1")
}

func TestRunTrimesterUsesEveryTerm(t *testing.T) {
	result := runEngine(t, Config{
		ScheduleType: ScheduleTrimester,
		Grid:         GridConfig{PeriodCount: 1, PeriodLength: 70},
		Teachers:     []Teacher{{ID: "t-1", Departments: []string{"Health"}}},
		Courses:      []Course{{ID: "health", Department: "Health", Required: true, Sections: 3}},
	})
	terms := map[Term]bool{}
	for _, sec := range result.Sections {
		terms[sec.Term] = true
	}
	assert.Equal(t, map[Term]bool{TermT1: true, TermT2: true, TermT3: true}, terms)
}

func TestRunBumpsBlockingSection(t *testing.T) {
	result := runEngine(t, Config{
		Grid: GridConfig{PeriodCount: 2, PeriodLength: 50},
		Teachers: []Teacher{
			{ID: "t-math", Departments: []string{"Math"}},
			{ID: "t-sped", Departments: []string{"SpecialEd"}},
			{ID: "t-art", Departments: []string{"Art"}},
		},
		Courses: []Course{
			{ID: "ceramics", Department: "Art", Required: true, Sections: 1},
			{ID: "geo", Department: "Math", Required: true, Sections: 1},
			{ID: "alg-inc", Department: "Math", Required: true, Sections: 1, CoTeacherID: "t-sped"},
		},
		Availability: []TeacherAvailability{
			{TeacherID: "t-art", Periods: []string{"2"}},
			{TeacherID: "t-sped", Periods: []string{"1"}},
		},
	})

	assert.Empty(t, conflictsOfType(result, ConflictUnscheduled))
	assert.Equal(t, 1, result.Stats.Bumps)
	assert.Equal(t, "1", sectionByID(t, result, "ceramics-1").PeriodKey())
	assert.Equal(t, "1", sectionByID(t, result, "geo-1").PeriodKey())
	assert.Equal(t, "2", sectionByID(t, result, "alg-inc-1").PeriodKey())
	assert.Equal(t, "BLOCKED", result.TeacherSchedules["t-sped"]["1"])
	assert.Equal(t, "alg-inc-1", result.TeacherSchedules["t-sped"]["2"])
}

func TestRunLockedSectionsSurviveRegeneration(t *testing.T) {
	first := runEngine(t, mathScienceConfig())
	bio := sectionByID(t, first, "bio-1")
	target := "7"
	if bio.PeriodKey() == target {
		target = "6"
	}

	cfg := mathScienceConfig()
	cfg.LockedSections = []LockedSection{{SectionID: "bio-1", Period: target}}
	second := runEngine(t, cfg)

	locked := sectionByID(t, second, "bio-1")
	assert.True(t, locked.Locked)
	assert.Equal(t, target, locked.PeriodKey())
	assert.Equal(t, "t-sci", locked.TeacherID)
	assert.Empty(t, second.Conflicts)
}

func TestRunLockedPeriodConstraint(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.Constraints = []Constraint{
		{Type: ConstraintLockedPeriod, SectionID: "alg1-2", Period: "3"},
		{Type: ConstraintTeacherUnavailable, TeacherID: "t-sci", Period: "1"},
		{Type: ConstraintLockedPeriod, SectionID: "missing-1", Period: "2"},
	}
	result := runEngine(t, cfg)

	alg := sectionByID(t, result, "alg1-2")
	assert.True(t, alg.Locked)
	assert.Equal(t, "3", alg.PeriodKey())
	assert.NotEqual(t, "1", sectionByID(t, result, "bio-1").PeriodKey())
	assert.Equal(t, "BLOCKED", result.TeacherSchedules["t-sci"]["1"])
}

func TestRunTermTaggedAvailabilityBlocksOnlyThatTerm(t *testing.T) {
	result := runEngine(t, Config{
		ScheduleType: ScheduleABBlock,
		Grid:         GridConfig{PeriodCount: 1, PeriodLength: 50},
		Teachers:     []Teacher{{ID: "t-math", Departments: []string{"Math"}}},
		Courses:      []Course{{ID: "m", Department: "Math", Required: true, Sections: 2}},
		Availability: []TeacherAvailability{{TeacherID: "t-math", Periods: []string{"A-1"}}},
		Seed:         7,
	})

	cells := result.TeacherSchedules["t-math"]
	assert.Equal(t, "BLOCKED", cells["A-1"])
	assert.NotContains(t, cells, "A-A-1")
	assert.NotContains(t, cells, "B-A-1")
	assert.Len(t, conflictsOfType(result, ConflictUnscheduled), 1)
	for _, sec := range result.Sections {
		if sec.Placed() {
			assert.Equal(t, "B-1", sec.PeriodKey())
		}
	}
}

func TestRunLockIntoOccupiedSlotIsConflict(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.Availability = []TeacherAvailability{{TeacherID: "t-sci", Periods: []string{"2"}, Reason: ReservationLunch}}
	cfg.LockedSections = []LockedSection{{SectionID: "bio-1", Period: "2"}}
	result := runEngine(t, cfg)

	bio := sectionByID(t, result, "bio-1")
	assert.True(t, bio.HasConflict)
	assert.False(t, bio.Placed())
	assert.Len(t, conflictsOfType(result, ConflictUnscheduled), 1)
}

func TestRunPLCAutoGroupsByDepartment(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.PLCEnabled = true
	result := runEngine(t, cfg)

	require.Len(t, result.PLCGroups, 2)
	assert.Equal(t, "Math PLC", result.PLCGroups[0].Name)
	assert.Equal(t, PeriodID("1"), result.PLCGroups[0].Period)
	assert.Equal(t, []string{"t-sci"}, result.PLCGroups[1].TeacherIDs)
	assert.Equal(t, "PLC", result.TeacherSchedules["t-math"]["1"])
	assert.Equal(t, "PLC", result.TeacherSchedules["t-sci"]["2"])
	for _, sec := range result.Sections {
		if sec.TeacherID == "t-math" {
			assert.NotEqual(t, "1", sec.PeriodKey())
		}
	}
}

func TestRunExplicitPLCGroup(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.PLCEnabled = true
	cfg.PLCGroups = []PlcGroup{{ID: "stem", Name: "STEM", Period: "5", TeacherIDs: []string{"t-math", "t-sci"}}}
	result := runEngine(t, cfg)

	require.Len(t, result.PLCGroups, 1)
	assert.Equal(t, "PLC", result.TeacherSchedules["t-math"]["5"])
	assert.Equal(t, "PLC", result.TeacherSchedules["t-sci"]["5"])
}

func TestRunMultiLunchReservesTeachers(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.Grid.Lunch = LunchConfig{Style: LunchMulti, Periods: []int{4, 5}}
	result := runEngine(t, cfg)

	assert.Equal(t, "LUNCH", result.TeacherSchedules["t-math"]["4"])
	assert.Equal(t, "LUNCH", result.TeacherSchedules["t-sci"]["5"])
	for _, c := range result.Coverage {
		if c.Type == PeriodTypeMultiLunch {
			assert.Equal(t, 20, c.AtLunch)
		}
	}
}

func TestRunCoverageConflicts(t *testing.T) {
	cfg := mathScienceConfig()
	cfg.StudentCount = 300
	cfg.Grid.Lunch = LunchConfig{Style: LunchUnit, Period: 4}
	result := runEngine(t, cfg)

	require.Len(t, result.Coverage, 7)
	var lunch PeriodCoverage
	for _, c := range result.Coverage {
		if c.Type == PeriodTypeUnitLunch {
			lunch = c
		}
	}
	assert.Equal(t, 300, lunch.AtLunch)
	assert.Equal(t, "All", lunch.AtLunchLabel)
	assert.Zero(t, lunch.Unaccounted)
	assert.Len(t, conflictsOfType(result, ConflictCoverage), 6)
}

func TestBalanceLunchWaves(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid: GridConfig{PeriodCount: 5, PeriodLength: 60,
			Lunch: LunchConfig{Style: LunchSplit, Period: 3, Waves: 2, WaveDuration: 30}},
	})
	lunch := FullYear("3")
	place := func(id, dept string, enrollment int) *Section {
		sec := &Section{ID: id, Department: dept, Enrollment: enrollment}
		rc.ledger.Assign(sec, Placement{Slot: lunch, TeacherID: "t-" + id})
		rc.sections = append(rc.sections, sec)
		return sec
	}
	math1 := place("math-1", "Math", 30)
	math2 := place("math-2", "Math", 30)
	sci := place("sci-1", "Science", 40)
	eng := place("eng-1", "English", 30)
	other := &Section{ID: "art-1", Department: "Art", Enrollment: 25}
	rc.ledger.Assign(other, Placement{Slot: FullYear("2"), TeacherID: "t-art"})
	rc.sections = append(rc.sections, other)

	balanceLunchWaves(rc)

	assert.Equal(t, 1, math1.LunchWave)
	assert.Equal(t, 1, math2.LunchWave)
	assert.Equal(t, 2, sci.LunchWave)
	assert.Equal(t, 2, eng.LunchWave)
	assert.Zero(t, other.LunchWave)
}

func TestRunConfigurationErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown type":       func(c *Config) { c.ScheduleType = "rotating" },
		"duplicate teacher":  func(c *Config) { c.Teachers = append(c.Teachers, c.Teachers[0]) },
		"course without id":  func(c *Config) { c.Courses[0].ID = "" },
		"negative students":  func(c *Config) { c.StudentCount = -1 },
		"no periods":         func(c *Config) { c.Grid = GridConfig{} },
		"lock outside grid":  func(c *Config) { c.LockedSections = []LockedSection{{SectionID: "bio-1", Period: "9"}} },
		"lock term mismatch": func(c *Config) { c.LockedSections = []LockedSection{{SectionID: "bio-1", Period: "T2-3"}} },
		"availability outside grid": func(c *Config) {
			c.Availability = []TeacherAvailability{{TeacherID: "t-sci", Periods: []string{"9"}}}
		},
		"availability term mismatch": func(c *Config) {
			c.Availability = []TeacherAvailability{{TeacherID: "t-sci", Periods: []string{"A-2"}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := mathScienceConfig()
			mutate(&cfg)
			result, err := New(nil).Run(context.Background(), cfg)
			assert.Nil(t, result)
			requireConfigurationError(t, err)
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Run(ctx, mathScienceConfig())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunCancelled.Code, appErrors.FromError(err).Code)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReportsProgress(t *testing.T) {
	cfg := mathScienceConfig()
	var calls []int
	cfg.Progress = func(done, total int) {
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	}
	runEngine(t, cfg)
	assert.Equal(t, []int{1, 2, 3}, calls)
}
