package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedSection(id, courseID string, slot Slot, maxSize int) *Section {
	s := slot
	return &Section{ID: id, CourseID: courseID, MaxSize: maxSize, Enrollment: maxSize, Slot: &s, Term: slot.resolvedTerm()}
}

func TestScheduleStudentsSeatsEveryRequest(t *testing.T) {
	alg := placedSection("alg-1", "alg", FullYear("1"), 30)
	art := placedSection("art-1", "art", FullYear("2"), 30)

	schedules := ScheduleStudents([]*Section{alg, art}, []Student{{
		ID: "s-1",
		Requests: []CourseRequest{
			{CourseID: "alg", Priority: 1},
			{CourseID: "art", Priority: 2},
		},
	}}, nil)

	require.Len(t, schedules, 1)
	assert.Empty(t, schedules[0].Conflicts)
	assert.Same(t, alg, schedules[0].Schedule["1"])
	assert.Same(t, art, schedules[0].Schedule["2"])
	assert.Equal(t, 1, alg.Enrollment)
	assert.Equal(t, 1, art.Enrollment)
}

func TestScheduleStudentsPriorityWinsSharedPeriod(t *testing.T) {
	bio := placedSection("bio-1", "bio", FullYear("3"), 30)
	alg := placedSection("alg-1", "alg", FullYear("3"), 30)

	schedules := ScheduleStudents([]*Section{alg, bio}, []Student{{
		ID: "s-1",
		Requests: []CourseRequest{
			{CourseID: "alg", Priority: 2},
			{CourseID: "bio", Priority: 1},
		},
	}}, &Config{})

	require.Len(t, schedules, 1)
	assert.Same(t, bio, schedules[0].Schedule["3"])
	assert.Equal(t, []CourseRequest{{CourseID: "alg", Priority: 2}}, schedules[0].Conflicts)
	assert.Equal(t, 0, alg.Enrollment)
}

func TestScheduleStudentsRespectsCapacity(t *testing.T) {
	small := placedSection("lab-1", "lab", FullYear("1"), 1)
	second := placedSection("lab-2", "lab", Slot{Term: TermS1, Period: "2"}, 1)
	students := []Student{
		{ID: "s-1", Requests: []CourseRequest{{CourseID: "lab", Priority: 1}}},
		{ID: "s-2", Requests: []CourseRequest{{CourseID: "lab", Priority: 1}}},
		{ID: "s-3", Requests: []CourseRequest{{CourseID: "lab", Priority: 1}}},
	}

	schedules := ScheduleStudents([]*Section{small, second}, students, nil)

	assert.Same(t, small, schedules[0].Schedule["1"])
	assert.Same(t, second, schedules[1].Schedule["S1-2"])
	assert.Len(t, schedules[2].Conflicts, 1)
	assert.Equal(t, 1, small.Enrollment)
	assert.Equal(t, 1, second.Enrollment)
}

func TestScheduleStudentsIgnoresRepeatedCourseRequest(t *testing.T) {
	m1 := placedSection("m-1", "m", FullYear("1"), 30)
	m2 := placedSection("m-2", "m", FullYear("2"), 30)

	schedules := ScheduleStudents([]*Section{m1, m2}, []Student{{
		ID: "s-1",
		Requests: []CourseRequest{
			{CourseID: "m", Priority: 1},
			{CourseID: "m", Priority: 2},
		},
	}}, nil)

	require.Len(t, schedules, 1)
	assert.Len(t, schedules[0].Schedule, 1)
	assert.Same(t, m1, schedules[0].Schedule["1"])
	assert.Empty(t, schedules[0].Conflicts)
	assert.Equal(t, 1, m1.Enrollment)
	assert.Equal(t, 0, m2.Enrollment)
}

func TestScheduleStudentsSkipsUnplacedAndConflicted(t *testing.T) {
	unplaced := &Section{ID: "chem-1", CourseID: "chem", MaxSize: 30, Enrollment: 20}
	flagged := placedSection("chem-2", "chem", FullYear("4"), 30)
	flagged.HasConflict = true

	schedules := ScheduleStudents([]*Section{unplaced, flagged}, []Student{
		{ID: "s-1", Requests: []CourseRequest{{CourseID: "chem", Priority: 1}}},
	}, nil)

	assert.Len(t, schedules[0].Conflicts, 1)
	assert.Empty(t, schedules[0].Schedule)
	assert.Equal(t, 20, unplaced.Enrollment)
	assert.Equal(t, 30, flagged.Enrollment)
}

func TestScheduleStudentsAgainstGeneratedSchedule(t *testing.T) {
	result := runEngine(t, mathScienceConfig())
	students := make([]Student, 0, 70)
	for i := 0; i < 70; i++ {
		students = append(students, Student{ID: string(rune('a' + i%26)), Requests: []CourseRequest{
			{CourseID: "alg1", Priority: 1},
			{CourseID: "bio", Priority: 2},
		}})
	}

	ScheduleStudents(result.Sections, students, nil)
	for _, sec := range result.Sections {
		assert.LessOrEqual(t, sec.Enrollment, sec.MaxSize)
	}
}
