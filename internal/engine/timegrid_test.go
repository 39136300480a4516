package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

func requireConfigurationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)
}

func TestBuildTimeGridExact(t *testing.T) {
	grid, conflicts, err := BuildTimeGrid(GridConfig{PeriodCount: 7, DayStart: 480, PeriodLength: 50, PassingTime: 5})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.Len(t, grid.Periods, 7)
	assert.Equal(t, 480, grid.Periods[0].Start)
	assert.Equal(t, 530, grid.Periods[0].End)
	assert.Equal(t, 535, grid.Periods[1].Start)
	assert.Equal(t, PeriodID("7"), grid.Periods[6].ID)
	assert.Len(t, grid.TeachingPeriods(), 7)
}

func TestBuildTimeGridFitMode(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{PeriodCount: 6, Mode: GenerationFit, DayStart: 480, DayEnd: 840})
	require.NoError(t, err)
	for _, p := range grid.Periods {
		assert.Equal(t, 60, p.Duration)
	}
	assert.Equal(t, 840, grid.Periods[5].End)
}

func TestBuildTimeGridInsertsWINAndReflows(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{
		PeriodCount:  7,
		DayStart:     480,
		PeriodLength: 50,
		PassingTime:  5,
		WIN:          BlockConfig{Enabled: true, AfterPeriod: 3, Duration: 30},
	})
	require.NoError(t, err)
	require.Len(t, grid.Periods, 8)

	win := grid.Periods[3]
	assert.Equal(t, PeriodWIN, win.ID)
	assert.Equal(t, PeriodTypeWIN, win.Type)
	assert.Equal(t, 645, win.Start)
	assert.Equal(t, 675, win.End)

	p4, ok := grid.Period("4")
	require.True(t, ok)
	assert.Equal(t, 680, p4.Start)
	assert.Len(t, grid.TeachingPeriods(), 7)
}

func TestBuildTimeGridReplacesPeriodWithWIN(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{
		PeriodCount:  7,
		PeriodLength: 50,
		WIN:          BlockConfig{Enabled: true, AfterPeriod: 4, Mode: BlockReplace},
	})
	require.NoError(t, err)
	assert.Len(t, grid.Periods, 7)
	assert.Len(t, grid.TeachingPeriods(), 6)
	_, ok := grid.Period("4")
	assert.False(t, ok)
	win, ok := grid.Period(PeriodWIN)
	require.True(t, ok)
	assert.Equal(t, PeriodTypeWIN, win.Type)
}

func TestBuildTimeGridAnchorOnReplacedWINPeriod(t *testing.T) {
	replace := BlockConfig{Enabled: true, AfterPeriod: 4, Mode: BlockReplace}
	cases := map[string]GridConfig{
		"recess":      {PeriodCount: 7, PeriodLength: 50, WIN: replace, Recess: BlockConfig{Enabled: true, AfterPeriod: 4, Duration: 15}},
		"unit lunch":  {PeriodCount: 7, PeriodLength: 50, WIN: replace, Lunch: LunchConfig{Style: LunchUnit, Period: 4}},
		"multi lunch": {PeriodCount: 7, PeriodLength: 50, WIN: replace, Lunch: LunchConfig{Style: LunchMulti, Periods: []int{3, 4}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := BuildTimeGrid(cfg)
			requireConfigurationError(t, err)
			assert.Contains(t, appErrors.FromError(err).Message, "period 4 was replaced by WIN")
		})
	}

	grid, _, err := BuildTimeGrid(GridConfig{
		PeriodCount:  7,
		PeriodLength: 50,
		WIN:          replace,
		Recess:       BlockConfig{Enabled: true, AfterPeriod: 3, Duration: 15},
		Lunch:        LunchConfig{Style: LunchUnit, Period: 5},
	})
	require.NoError(t, err)
	assert.Len(t, grid.TeachingPeriods(), 5)
}

func TestBuildTimeGridRecessFollowsWIN(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{
		PeriodCount:  5,
		PeriodLength: 50,
		WIN:          BlockConfig{Enabled: true, AfterPeriod: 2, Duration: 30},
		Recess:       BlockConfig{Enabled: true, AfterPeriod: 2, Duration: 15},
	})
	require.NoError(t, err)
	require.Len(t, grid.Periods, 7)
	assert.Equal(t, PeriodWIN, grid.Periods[2].ID)
	assert.Equal(t, PeriodRecess, grid.Periods[3].ID)
	assert.Equal(t, grid.Periods[2].End, grid.Periods[3].Start)
}

func TestBuildTimeGridUnitLunchIsNotTeaching(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{
		PeriodCount:  6,
		PeriodLength: 50,
		Lunch:        LunchConfig{Style: LunchUnit, Period: 4},
	})
	require.NoError(t, err)
	lunch, ok := grid.Period("4")
	require.True(t, ok)
	assert.Equal(t, PeriodTypeUnitLunch, lunch.Type)
	assert.Len(t, grid.TeachingPeriods(), 5)
}

func TestBuildTimeGridShortSplitLunchIsCoverageConflict(t *testing.T) {
	grid, conflicts, err := BuildTimeGrid(GridConfig{
		PeriodCount:  6,
		PeriodLength: 50,
		Lunch:        LunchConfig{Style: LunchSplit, Period: 4, Waves: 3, WaveDuration: 30},
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictCoverage, conflicts[0].Type)
	assert.Contains(t, conflicts[0].Message, "need 90 minutes")
	assert.Len(t, grid.TeachingPeriods(), 6)
}

func TestSplitLunchRequirement(t *testing.T) {
	assert.Equal(t, 90, SplitLunchRequirement(LunchConfig{}))
	assert.Equal(t, 85, SplitLunchRequirement(LunchConfig{Waves: 2, WaveDuration: 25, MinClassTime: 60}))
}

func TestBuildTimeGridExplicitPeriods(t *testing.T) {
	grid, _, err := BuildTimeGrid(GridConfig{Periods: []Period{
		{ID: "2", Start: 600, End: 650},
		{ID: "1", Start: 480, End: 530},
	}})
	require.NoError(t, err)
	require.Len(t, grid.Periods, 2)
	assert.Equal(t, PeriodID("1"), grid.Periods[0].ID)
	assert.Equal(t, 50, grid.Periods[0].Duration)
	assert.Equal(t, PeriodTypeClass, grid.Periods[1].Type)
}

func TestBuildTimeGridConfigurationErrors(t *testing.T) {
	cases := map[string]GridConfig{
		"zero periods":       {},
		"inverted period":    {Periods: []Period{{ID: "1", Start: 500, End: 480}}},
		"duplicate period":   {Periods: []Period{{ID: "1", Start: 480, End: 500}, {ID: "1", Start: 510, End: 540}}},
		"missing win anchor": {PeriodCount: 3, PeriodLength: 50, WIN: BlockConfig{Enabled: true, AfterPeriod: 9, Duration: 20}},
		"lunch not teaching": {PeriodCount: 3, PeriodLength: 50, Lunch: LunchConfig{Style: LunchUnit, Period: 5}},
		"fit leaves nothing": {PeriodCount: 10, Mode: GenerationFit, DayStart: 480, DayEnd: 490, PassingTime: 5},
		"unknown lunch":      {PeriodCount: 3, PeriodLength: 50, Lunch: LunchConfig{Style: "brunch"}},
		"all periods lunch":  {PeriodCount: 1, PeriodLength: 50, Lunch: LunchConfig{Style: LunchUnit, Period: 1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := BuildTimeGrid(cfg)
			requireConfigurationError(t, err)
		})
	}
}

func TestParseSlot(t *testing.T) {
	slot, err := ParseSlot("S1-3")
	require.NoError(t, err)
	assert.Equal(t, Slot{Term: TermS1, Period: "3"}, slot)
	assert.Equal(t, "S1-3", slot.String())

	slot, err = ParseSlot("4")
	require.NoError(t, err)
	assert.Equal(t, FullYear("4"), slot)
	assert.Equal(t, "4", slot.String())

	slot, err = ParseSlot("WIN")
	require.NoError(t, err)
	assert.Equal(t, FullYear(PeriodWIN), slot)

	_, err = ParseSlot(" ")
	assert.Error(t, err)
}
