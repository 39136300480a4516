package engine

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newRunContext prepares a context up to, but not including, section
// generation.
func newRunContext(t *testing.T, cfg Config) *runContext {
	t.Helper()
	require.NoError(t, normalizeConfig(&cfg))
	strategy, err := NewStrategy(cfg.ScheduleType)
	require.NoError(t, err)
	grid, _, err := BuildTimeGrid(cfg.Grid)
	require.NoError(t, err)

	rc := &runContext{
		ctx:       context.Background(),
		cfg:       &cfg,
		grid:      grid,
		ledger:    NewLedger(maxTeacherLoad(&cfg, grid)),
		strategy:  strategy,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    zap.NewNop(),
		teachers:  cfg.Teachers,
		rooms:     cfg.Rooms,
		roomIndex: make(map[string]Room),
	}
	for _, r := range cfg.Rooms {
		rc.roomIndex[r.ID] = r
	}
	return rc
}

func TestGenerateSectionsCoreSizing(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid:         GridConfig{PeriodCount: 7, PeriodLength: 50},
		Teachers:     []Teacher{{ID: "t-eng", Departments: []string{"English"}}},
		Courses:      []Course{{ID: "eng9", Name: "English 9", Department: "English", Required: true}},
		StudentCount: 95,
		MaxClassSize: 30,
	})
	generateSections(rc)

	require.Len(t, rc.sections, 4)
	for i, sec := range rc.sections {
		assert.Equal(t, i+1, sec.SectionNum)
		assert.Equal(t, 24, sec.Enrollment)
		assert.True(t, sec.IsCore)
		assert.False(t, sec.IsSingleton)
		assert.Equal(t, "t-eng", sec.TeacherID)
	}
	assert.Equal(t, "eng9-1", rc.sections[0].ID)
}

func TestGenerateSectionsElectiveRemainderByCourseID(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid:     GridConfig{PeriodCount: 4, PeriodLength: 50},
		Teachers: []Teacher{{ID: "t-1", Departments: []string{"Arts", "Core"}}},
		Courses: []Course{
			{ID: "core", Department: "Core", Required: true, Sections: 1},
			{ID: "E3", Department: "Arts", Sections: 1},
			{ID: "E1", Department: "Arts", Sections: 2},
			{ID: "E2", Department: "Arts", Sections: 1},
		},
		StudentCount: 10,
	})
	generateSections(rc)

	enrollment := map[string]int{}
	perCourse := map[string]int{}
	for _, sec := range rc.sections {
		enrollment[sec.ID] = sec.Enrollment
		if !sec.IsCore {
			perCourse[sec.CourseID] += sec.Enrollment
		}
	}
	// 10 students x (4 slots - 1 core) = 30 seats over 4 elective sections.
	assert.Equal(t, 8, enrollment["E1-1"])
	assert.Equal(t, 7, enrollment["E1-2"])
	assert.Equal(t, 8, enrollment["E2-1"])
	assert.Equal(t, 7, enrollment["E3-1"])
	assert.Equal(t, 30, perCourse["E1"]+perCourse["E2"]+perCourse["E3"])
	assert.True(t, rc.byID["E3-1"].IsSingleton)
	assert.False(t, rc.byID["E1-1"].IsSingleton)
}

func TestGenerateSectionsElectiveCountsFromDemand(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid:         GridConfig{PeriodCount: 3, PeriodLength: 50},
		Teachers:     []Teacher{{ID: "t-1", Departments: []string{"Arts"}}},
		Courses:      []Course{{ID: "art", Department: "Arts"}, {ID: "band", Department: "Arts", MaxSize: 20}},
		StudentCount: 40,
		MaxClassSize: 30,
	})
	generateSections(rc)

	// 40 x 3 = 120 seats, 60 per course.
	assert.Len(t, rc.byCourse["art"], 2)
	assert.Len(t, rc.byCourse["band"], 3)
	for _, sec := range rc.sections {
		assert.LessOrEqual(t, sec.Enrollment, sec.MaxSize)
	}
}

func TestGenerateSectionsTermsMultiplyElectiveDemand(t *testing.T) {
	rc := newRunContext(t, Config{
		ScheduleType: ScheduleFourByFour,
		Grid:         GridConfig{PeriodCount: 4, PeriodLength: 90},
		Teachers:     []Teacher{{ID: "t-1", Departments: []string{"Arts"}}},
		Courses:      []Course{{ID: "art", Department: "Arts", Sections: 4}},
		StudentCount: 10,
	})
	generateSections(rc)

	total := 0
	for _, sec := range rc.sections {
		total += sec.Enrollment
	}
	assert.Equal(t, 80, total)
}

func TestSectionCountMatchesRun(t *testing.T) {
	cfg := Config{
		Grid:     GridConfig{PeriodCount: 7, PeriodLength: 50},
		Teachers: []Teacher{{ID: "t-1"}},
		Courses: []Course{
			{ID: "eng", Required: true},
			{ID: "art"},
			{ID: "band"},
		},
		StudentCount: 600,
		Seed:         3,
	}

	n, err := SectionCount(cfg)
	require.NoError(t, err)
	// 20 core sections; 600 x 6 open slots split over two electives.
	assert.Equal(t, 140, n)

	result, err := New(zap.NewNop()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, result.Sections, n)
}

func TestSectionCountConfigurationError(t *testing.T) {
	_, err := SectionCount(Config{ScheduleType: "rotating", Grid: GridConfig{PeriodCount: 4}})
	require.Error(t, err)

	_, err = SectionCount(Config{Courses: []Course{{ID: "a"}, {ID: "a"}}, Grid: GridConfig{PeriodCount: 4}})
	require.Error(t, err)
}

func TestGenerateSectionsBalancesDepartmentTeachers(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid: GridConfig{PeriodCount: 7, PeriodLength: 50},
		Teachers: []Teacher{
			{ID: "t-a", Departments: []string{"Math"}},
			{ID: "t-b", Departments: []string{"Math"}},
			{ID: "t-c", Departments: []string{"History"}},
		},
		Courses:      []Course{{ID: "alg", Department: "Math", Required: true, Sections: 4}},
		StudentCount: 100,
		Seed:         7,
	})
	generateSections(rc)

	load := map[string]int{}
	for _, sec := range rc.byCourse["alg"] {
		load[sec.TeacherID]++
	}
	assert.Equal(t, map[string]int{"t-a": 2, "t-b": 2}, load)
}

func TestGenerateSectionsFallsBackToWholePool(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid:     GridConfig{PeriodCount: 7, PeriodLength: 50},
		Teachers: []Teacher{{ID: "t-c", Departments: []string{"History"}}},
		Courses:  []Course{{ID: "latin", Department: "Languages", Required: true, Sections: 1}},
	})
	generateSections(rc)

	assert.Equal(t, "t-c", rc.byID["latin-1"].TeacherID)
	assert.False(t, rc.byID["latin-1"].HasConflict)
}

func TestGenerateSectionsNoTeacher(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid:    GridConfig{PeriodCount: 7, PeriodLength: 50},
		Courses: []Course{{ID: "alg", Name: "Algebra I", Department: "Math", Required: true, Sections: 2}},
	})
	generateSections(rc)

	for _, sec := range rc.sections {
		assert.True(t, sec.HasConflict)
		assert.Equal(t, "No Teacher", sec.ConflictReason)
	}
	require.Len(t, rc.conflicts, 2)
	assert.Equal(t, ConflictUnscheduled, rc.conflicts[0].Type)
}

func TestGenerateSectionsSizeOverridesAndHomeRooms(t *testing.T) {
	rc := newRunContext(t, Config{
		Grid: GridConfig{PeriodCount: 7, PeriodLength: 50},
		Teachers: []Teacher{
			{ID: "t-sci", Departments: []string{"Science"}, HomeRoomID: "lab-2"},
			{ID: "t-float", Departments: []string{"Science"}, Floater: true},
		},
		Rooms: []Room{
			{ID: "lab-1", Type: RoomTypeLab},
			{ID: "lab-2", Type: RoomTypeLab},
		},
		Courses:       []Course{{ID: "chem", Department: "Science", Required: true, Sections: 2, RoomType: RoomTypeLab}},
		StudentCount:  40,
		SizeOverrides: map[string]int{"chem-1": 45, "chem-2": 12},
	})
	assignRoomOwners(rc)
	generateSections(rc)

	assert.Equal(t, "t-sci", rc.ledger.RoomOwner("lab-2"))
	assert.Empty(t, rc.ledger.RoomOwner("lab-1"))
	assert.Equal(t, 30, rc.byID["chem-1"].Enrollment)
	assert.Equal(t, 12, rc.byID["chem-2"].Enrollment)
	for _, sec := range rc.sections {
		if sec.TeacherID == "t-sci" {
			assert.Equal(t, "lab-2", sec.RoomID)
		} else {
			assert.Empty(t, sec.RoomID)
		}
	}
}
