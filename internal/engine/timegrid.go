package engine

import (
	"fmt"
	"sort"
	"strconv"

	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

// GenerationMode selects how period lengths are derived when no explicit
// period list is supplied.
type GenerationMode string

const (
	GenerationExact GenerationMode = "exact"
	GenerationFit   GenerationMode = "fit"
)

// LunchStyle selects how lunch is carved out of the day.
type LunchStyle string

const (
	LunchNone  LunchStyle = "none"
	LunchUnit  LunchStyle = "unit"
	LunchSplit LunchStyle = "split"
	LunchMulti LunchStyle = "multi"
)

// BlockMode decides whether the WIN block is its own block or takes over a period.
type BlockMode string

const (
	BlockInsert  BlockMode = "insert"
	BlockReplace BlockMode = "replace"
)

const (
	defaultLunchWaves   = 3
	defaultWaveDuration = 30
)

// LunchConfig describes the lunch arrangement. Period numbers are the
// ordinals of teaching periods.
type LunchConfig struct {
	Style        LunchStyle `json:"style"`
	Period       int        `json:"period,omitempty"`
	Periods      []int      `json:"periods,omitempty"`
	Waves        int        `json:"waves,omitempty"`
	WaveDuration int        `json:"waveDuration,omitempty"`
	MinClassTime int        `json:"minClassTime,omitempty"`
}

// BlockConfig describes an optional WIN or recess block.
type BlockConfig struct {
	Enabled     bool      `json:"enabled"`
	AfterPeriod int       `json:"afterPeriod"`
	Duration    int       `json:"duration"`
	Mode        BlockMode `json:"mode,omitempty"`
}

// GridConfig is the compact description the time grid is built from.
type GridConfig struct {
	Periods      []Period       `json:"periods,omitempty"`
	PeriodCount  int            `json:"periodCount,omitempty"`
	Mode         GenerationMode `json:"mode,omitempty"`
	DayStart     int            `json:"dayStart,omitempty"`
	DayEnd       int            `json:"dayEnd,omitempty"`
	PeriodLength int            `json:"periodLength,omitempty"`
	PassingTime  int            `json:"passingTime,omitempty"`
	WIN          BlockConfig    `json:"win"`
	Recess       BlockConfig    `json:"recess"`
	Lunch        LunchConfig    `json:"lunch"`
}

// TimeGrid is the ordered list of periods for a run.
type TimeGrid struct {
	Periods []Period
	byID    map[PeriodID]int
}

// Period returns the period with the given id.
func (g *TimeGrid) Period(id PeriodID) (Period, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return Period{}, false
	}
	return g.Periods[idx], true
}

// TeachingPeriods returns the periods sections can be placed into, in order.
func (g *TimeGrid) TeachingPeriods() []Period {
	result := make([]Period, 0, len(g.Periods))
	for _, p := range g.Periods {
		if p.Type.Teaching() {
			result = append(result, p)
		}
	}
	return result
}

// PeriodsOfType returns the periods of the given type, in order.
func (g *TimeGrid) PeriodsOfType(t PeriodType) []Period {
	var result []Period
	for _, p := range g.Periods {
		if p.Type == t {
			result = append(result, p)
		}
	}
	return result
}

// BuildTimeGrid constructs the ordered period list. Configuration problems
// return ErrConfiguration; a split lunch too short to host its waves is
// reported as a coverage conflict instead.
func BuildTimeGrid(cfg GridConfig) (*TimeGrid, []Conflict, error) {
	var (
		periods []Period
		err     error
	)
	if len(cfg.Periods) > 0 {
		periods, err = explicitPeriods(cfg.Periods)
	} else {
		periods, err = generatePeriods(cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.WIN.Enabled {
		if cfg.WIN.Mode == BlockReplace {
			periods, err = replaceWithWIN(periods, cfg.WIN)
			if err == nil {
				err = checkReplacedAnchors(cfg)
			}
		} else {
			periods, err = insertBlock(periods, cfg.WIN, PeriodWIN, "WIN", PeriodTypeWIN, cfg.PassingTime)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Recess.Enabled {
		periods, err = insertBlock(periods, cfg.Recess, PeriodRecess, "Recess", PeriodTypeRecess, cfg.PassingTime)
		if err != nil {
			return nil, nil, err
		}
	}

	grid := &TimeGrid{Periods: periods, byID: make(map[PeriodID]int, len(periods))}
	for i, p := range periods {
		grid.byID[p.ID] = i
	}

	conflicts, err := tagLunch(grid, cfg.Lunch)
	if err != nil {
		return nil, nil, err
	}
	if len(grid.TeachingPeriods()) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrConfiguration, "schedule has no teaching periods")
	}
	return grid, conflicts, nil
}

func explicitPeriods(in []Period) ([]Period, error) {
	periods := make([]Period, len(in))
	copy(periods, in)
	seen := make(map[PeriodID]struct{}, len(periods))
	for i := range periods {
		p := &periods[i]
		if p.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("period at position %d has no id", i+1))
		}
		if _, dup := seen[p.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("duplicate period id %s", p.ID))
		}
		seen[p.ID] = struct{}{}
		if p.End <= p.Start {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("period %s ends before it starts", p.ID))
		}
		p.Duration = p.End - p.Start
		if p.Type == "" {
			p.Type = PeriodTypeClass
		}
		if p.Label == "" {
			p.Label = "Period " + string(p.ID)
		}
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].Start < periods[j].Start })
	return periods, nil
}

func generatePeriods(cfg GridConfig) ([]Period, error) {
	n := cfg.PeriodCount
	if n <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "period count must be positive")
	}
	passing := cfg.PassingTime
	if passing < 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "passing time cannot be negative")
	}

	length := cfg.PeriodLength
	if cfg.Mode == GenerationFit {
		if cfg.DayEnd <= cfg.DayStart {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "day end must be after day start")
		}
		available := cfg.DayEnd - cfg.DayStart - passing*(n-1)
		for _, block := range []BlockConfig{cfg.WIN, cfg.Recess} {
			if block.Enabled && block.Mode != BlockReplace {
				available -= block.Duration + passing
			}
		}
		length = available / n
	}
	if length <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "period length must be positive")
	}

	periods := make([]Period, 0, n)
	cursor := cfg.DayStart
	for i := 1; i <= n; i++ {
		periods = append(periods, Period{
			ID:       PeriodID(strconv.Itoa(i)),
			Label:    fmt.Sprintf("Period %d", i),
			Type:     PeriodTypeClass,
			Start:    cursor,
			End:      cursor + length,
			Duration: length,
		})
		cursor += length + passing
	}
	return periods, nil
}

func anchorIndex(periods []Period, ordinal int) int {
	id := PeriodID(strconv.Itoa(ordinal))
	for i, p := range periods {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// insertBlock places a new block after the anchor period (and after any
// block already inserted there) and re-flows every later period.
func insertBlock(periods []Period, block BlockConfig, id PeriodID, label string, typ PeriodType, passing int) ([]Period, error) {
	if block.Duration <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("%s duration must be positive", label))
	}
	idx := anchorIndex(periods, block.AfterPeriod)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("%s anchor period %d does not exist", label, block.AfterPeriod))
	}
	for idx+1 < len(periods) && (periods[idx+1].Type == PeriodTypeWIN || periods[idx+1].Type == PeriodTypeRecess) {
		idx++
	}

	start := periods[idx].End + passing
	inserted := Period{
		ID:       id,
		Label:    label,
		Type:     typ,
		Start:    start,
		End:      start + block.Duration,
		Duration: block.Duration,
	}
	shift := block.Duration + passing

	out := make([]Period, 0, len(periods)+1)
	out = append(out, periods[:idx+1]...)
	out = append(out, inserted)
	for _, p := range periods[idx+1:] {
		p.Start += shift
		p.End += shift
		out = append(out, p)
	}
	return out, nil
}

func replaceWithWIN(periods []Period, block BlockConfig) ([]Period, error) {
	idx := anchorIndex(periods, block.AfterPeriod)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("WIN period %d does not exist", block.AfterPeriod))
	}
	out := make([]Period, len(periods))
	copy(out, periods)
	out[idx].ID = PeriodWIN
	out[idx].Label = "WIN"
	out[idx].Type = PeriodTypeWIN
	return out, nil
}

// checkReplacedAnchors rejects a recess or lunch anchored on the period a
// replace-mode WIN block took over.
func checkReplacedAnchors(cfg GridConfig) error {
	win := cfg.WIN.AfterPeriod
	if cfg.Recess.Enabled && cfg.Recess.AfterPeriod == win {
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("Recess anchor period %d was replaced by WIN; anchor it on another period or use insert mode", win))
	}
	var lunch []int
	switch cfg.Lunch.Style {
	case LunchUnit, LunchSplit:
		lunch = []int{cfg.Lunch.Period}
	case LunchMulti:
		lunch = cfg.Lunch.Periods
	}
	for _, ordinal := range lunch {
		if ordinal == win {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("lunch period %d was replaced by WIN; pick another lunch period or use insert mode", win))
		}
	}
	return nil
}

// SplitLunchRequirement is the minimum length of a split-lunch period.
func SplitLunchRequirement(cfg LunchConfig) int {
	waves, waveDuration := lunchWaves(cfg)
	byWaves := waves * waveDuration
	byInstruction := cfg.MinClassTime + waveDuration
	if byWaves > byInstruction {
		return byWaves
	}
	return byInstruction
}

func lunchWaves(cfg LunchConfig) (int, int) {
	waves := cfg.Waves
	if waves <= 0 {
		waves = defaultLunchWaves
	}
	duration := cfg.WaveDuration
	if duration <= 0 {
		duration = defaultWaveDuration
	}
	return waves, duration
}

func tagLunch(grid *TimeGrid, cfg LunchConfig) ([]Conflict, error) {
	mark := func(ordinal int, typ PeriodType) (*Period, error) {
		idx, ok := grid.byID[PeriodID(strconv.Itoa(ordinal))]
		if !ok || grid.Periods[idx].Type != PeriodTypeClass {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("lunch period %d is not a teaching period", ordinal))
		}
		grid.Periods[idx].Type = typ
		return &grid.Periods[idx], nil
	}

	switch cfg.Style {
	case "", LunchNone:
		return nil, nil
	case LunchUnit:
		p, err := mark(cfg.Period, PeriodTypeUnitLunch)
		if err != nil {
			return nil, err
		}
		p.Label = "Lunch"
		return nil, nil
	case LunchSplit:
		p, err := mark(cfg.Period, PeriodTypeSplitLunch)
		if err != nil {
			return nil, err
		}
		required := SplitLunchRequirement(cfg)
		if p.Duration < required {
			waves, waveDuration := lunchWaves(cfg)
			return []Conflict{{
				Type: ConflictCoverage,
				Message: fmt.Sprintf("Split lunch period %s is %d minutes but %d waves of %d minutes with %d minutes of instruction need %d minutes",
					p.ID, p.Duration, waves, waveDuration, cfg.MinClassTime, required),
			}}, nil
		}
		return nil, nil
	case LunchMulti:
		if len(cfg.Periods) == 0 {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "multi-period lunch needs at least one lunch period")
		}
		for _, ordinal := range cfg.Periods {
			if _, err := mark(ordinal, PeriodTypeMultiLunch); err != nil {
				return nil, err
			}
		}
		return nil, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unknown lunch style %q", cfg.Style))
	}
}
