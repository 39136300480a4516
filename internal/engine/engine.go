package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

const defaultMaxClassSize = 30

// ProgressFunc receives best-effort placement progress.
type ProgressFunc func(done, total int)

// Config is the full input of one master-schedule run.
type Config struct {
	ScheduleType   ScheduleType          `json:"scheduleType"`
	Grid           GridConfig            `json:"grid"`
	Teachers       []Teacher             `json:"teachers"`
	Rooms          []Room                `json:"rooms"`
	Courses        []Course              `json:"courses"`
	StudentCount   int                   `json:"studentCount"`
	MaxClassSize   int                   `json:"maxClassSize,omitempty"`
	PlanPeriods    int                   `json:"planPeriods"`
	PLCEnabled     bool                  `json:"plcEnabled"`
	PLCGroups      []PlcGroup            `json:"plcGroups,omitempty"`
	Constraints    []Constraint          `json:"constraints,omitempty"`
	Availability   []TeacherAvailability `json:"availability,omitempty"`
	LockedSections []LockedSection       `json:"lockedSections,omitempty"`
	SizeOverrides  map[string]int        `json:"sizeOverrides,omitempty"`
	MaxTeacherLoad int                   `json:"maxTeacherLoad,omitempty"`
	Seed           int64                 `json:"seed"`
	Progress       ProgressFunc          `json:"-"`
}

// Result is the full output of one master-schedule run.
type Result struct {
	ScheduleType     ScheduleType                 `json:"scheduleType"`
	Seed             int64                        `json:"seed"`
	Sections         []*Section                   `json:"sections"`
	Periods          []Period                     `json:"periods"`
	Logs             []LogEntry                   `json:"logs"`
	Conflicts        []Conflict                   `json:"conflicts"`
	TeacherSchedules map[string]map[string]string `json:"teacherSchedules"`
	RoomSchedules    map[string]map[string]string `json:"roomSchedules"`
	Coverage         []PeriodCoverage             `json:"coverage"`
	PLCGroups        []PlcGroup                   `json:"plcGroups"`
	Stats            Stats                        `json:"stats"`
	Duration         time.Duration                `json:"duration"`
}

// Engine runs master-schedule generation.
type Engine struct {
	logger *zap.Logger
}

// New constructs an engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// runContext is the explicit state threaded through every stage of a run.
type runContext struct {
	ctx       context.Context
	cfg       *Config
	grid      *TimeGrid
	ledger    *Ledger
	strategy  PlacementStrategy
	rng       *rand.Rand
	logger    *zap.Logger
	teachers  []Teacher
	rooms     []Room
	roomIndex map[string]Room
	sections  []*Section
	byID      map[string]*Section
	byCourse  map[string][]*Section
	plcGroups []PlcGroup
	blocks    []availabilityBlock
	conflicts []Conflict
	logs      []LogEntry
	bumps     int
}

func (rc *runContext) log(action string, sec *Section, slot *Slot, cost int, format string, args ...interface{}) {
	entry := LogEntry{
		Seq:     len(rc.logs) + 1,
		Action:  action,
		Cost:    cost,
		Message: fmt.Sprintf(format, args...),
	}
	if sec != nil {
		entry.SectionID = sec.ID
	}
	if slot != nil {
		entry.Slot = slot.String()
	}
	rc.logs = append(rc.logs, entry)
	rc.logger.Debug("placement",
		zap.String("action", action),
		zap.String("section", entry.SectionID),
		zap.String("slot", entry.Slot),
		zap.Int("cost", cost),
	)
}

func (rc *runContext) conflict(c Conflict) {
	rc.conflicts = append(rc.conflicts, c)
}

// Run executes the full pipeline. Only configuration problems and
// cancellation are returned as errors; everything else lands in the result.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	started := time.Now()
	if err := normalizeConfig(&cfg); err != nil {
		return nil, err
	}
	strategy, err := NewStrategy(cfg.ScheduleType)
	if err != nil {
		return nil, err
	}
	grid, gridConflicts, err := BuildTimeGrid(cfg.Grid)
	if err != nil {
		return nil, err
	}
	locked, err := resolveLocks(&cfg, grid, strategy)
	if err != nil {
		return nil, err
	}
	blocks, err := resolveAvailability(&cfg, grid, strategy)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With(zap.String("schedule_type", string(cfg.ScheduleType)), zap.Int64("seed", cfg.Seed))
	rc := &runContext{
		ctx:       ctx,
		cfg:       &cfg,
		grid:      grid,
		ledger:    NewLedger(maxTeacherLoad(&cfg, grid)),
		strategy:  strategy,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    logger,
		teachers:  cfg.Teachers,
		rooms:     cfg.Rooms,
		roomIndex: make(map[string]Room, len(cfg.Rooms)),
		blocks:    blocks,
		conflicts: gridConflicts,
	}
	for _, r := range cfg.Rooms {
		rc.roomIndex[r.ID] = r
	}

	assignRoomOwners(rc)
	applyReservations(rc)
	generateSections(rc)
	applyLocks(rc, locked)

	if err := strategy.Execute(rc, rc.sections); err != nil {
		return nil, err
	}
	balanceLunchWaves(rc)
	coverage := reportCoverage(rc)
	reportPlanViolations(rc)

	result := buildResult(rc, coverage)
	result.Duration = time.Since(started)
	logger.Info("master schedule generated",
		zap.Int("sections", result.Stats.TotalSections),
		zap.Int("scheduled", result.Stats.ScheduledSections),
		zap.Int("conflicts", result.Stats.Conflicts),
		zap.Int("bumps", result.Stats.Bumps),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func normalizeConfig(cfg *Config) error {
	if cfg.ScheduleType == "" {
		cfg.ScheduleType = ScheduleStandard
	}
	if cfg.MaxClassSize <= 0 {
		cfg.MaxClassSize = defaultMaxClassSize
	}
	if cfg.StudentCount < 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "student count cannot be negative")
	}
	if cfg.PlanPeriods < 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "plan periods cannot be negative")
	}
	if err := uniqueIDs("teacher", len(cfg.Teachers), func(i int) string { return cfg.Teachers[i].ID }); err != nil {
		return err
	}
	if err := uniqueIDs("room", len(cfg.Rooms), func(i int) string { return cfg.Rooms[i].ID }); err != nil {
		return err
	}
	if err := uniqueIDs("course", len(cfg.Courses), func(i int) string { return cfg.Courses[i].ID }); err != nil {
		return err
	}
	for _, c := range cfg.Courses {
		if c.MaxSize < 0 || c.Sections < 0 {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("course %s has negative size or section count", c.ID))
		}
	}
	return nil
}

func uniqueIDs(kind string, n int, id func(int) string) error {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("%s at position %d has no id", kind, i+1))
		}
		if _, dup := seen[v]; dup {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("duplicate %s id %s", kind, v))
		}
		seen[v] = struct{}{}
	}
	return nil
}

func maxTeacherLoad(cfg *Config, grid *TimeGrid) int {
	if cfg.MaxTeacherLoad > 0 {
		return cfg.MaxTeacherLoad
	}
	load := len(grid.TeachingPeriods()) - cfg.PlanPeriods
	if cfg.PLCEnabled {
		load--
	}
	if load < 1 {
		load = 1
	}
	return load
}

// assignRoomOwners gives every non-floater teacher a static home room:
// the configured one when free, otherwise the next unowned room.
func assignRoomOwners(rc *runContext) {
	var pending []Teacher
	for _, t := range rc.teachers {
		if t.Floater {
			continue
		}
		if _, ok := rc.roomIndex[t.HomeRoomID]; ok && rc.ledger.RoomOwner(t.HomeRoomID) == "" {
			rc.ledger.SetRoomOwner(t.HomeRoomID, t.ID)
			continue
		}
		pending = append(pending, t)
	}
	next := 0
	for _, t := range pending {
		for next < len(rc.rooms) && rc.ledger.RoomOwner(rc.rooms[next].ID) != "" {
			next++
		}
		if next >= len(rc.rooms) {
			return
		}
		rc.ledger.SetRoomOwner(rc.rooms[next].ID, t.ID)
		next++
	}
}

// slotsFor expands a display period into the strategy's slots. A bare
// period id covers every term.
func slotsFor(slot Slot, strategy PlacementStrategy) []Slot {
	if slot.resolvedTerm() != TermFullYear {
		return []Slot{slot}
	}
	terms := strategy.Terms()
	out := make([]Slot, 0, len(terms))
	for _, term := range terms {
		out = append(out, Slot{Term: term, Period: slot.Period})
	}
	return out
}

func (rc *runContext) blockPeriod(teacherID string, period PeriodID, reason Reservation) {
	for _, slot := range slotsFor(FullYear(period), rc.strategy) {
		if !rc.ledger.BlockTeacher(teacherID, slot, reason) {
			rc.log("reserve_skipped", nil, &slot, 0, "teacher %s already occupied, %s not reserved", teacherID, reason)
		}
	}
}

// applyReservations commits availability blocks, unavailability
// constraints, PLC groups and multi-period lunch before any placement.
func applyReservations(rc *runContext) {
	for _, b := range rc.blocks {
		for _, slot := range b.slots {
			if !rc.ledger.BlockTeacher(b.teacherID, slot, b.reason) {
				rc.log("reserve_skipped", nil, &slot, 0, "teacher %s already occupied, %s not reserved", b.teacherID, b.reason)
			}
		}
	}
	for _, c := range rc.cfg.Constraints {
		if c.Type != ConstraintTeacherUnavailable {
			continue
		}
		slot, err := ParseSlot(c.Period)
		if err != nil {
			continue
		}
		for _, s := range slotsFor(slot, rc.strategy) {
			rc.ledger.BlockTeacher(c.TeacherID, s, ReservationBlocked)
		}
	}

	if rc.cfg.PLCEnabled {
		rc.plcGroups = resolvePLCGroups(rc)
		for _, g := range rc.plcGroups {
			for _, teacherID := range g.TeacherIDs {
				rc.blockPeriod(teacherID, g.Period, ReservationPLC)
			}
		}
	}

	lunches := rc.grid.PeriodsOfType(PeriodTypeMultiLunch)
	if len(lunches) > 0 {
		for i, t := range rc.teachers {
			rc.blockPeriod(t.ID, lunches[i%len(lunches)].ID, ReservationLunch)
		}
	}
}

// resolvePLCGroups returns the configured groups, or one group per primary
// department rotated across the plain class periods.
func resolvePLCGroups(rc *runContext) []PlcGroup {
	if len(rc.cfg.PLCGroups) > 0 {
		groups := make([]PlcGroup, len(rc.cfg.PLCGroups))
		copy(groups, rc.cfg.PLCGroups)
		return groups
	}
	periods := rc.grid.PeriodsOfType(PeriodTypeClass)
	if len(periods) == 0 {
		periods = rc.grid.TeachingPeriods()
	}
	byDept := make(map[string][]string)
	for _, t := range rc.teachers {
		dept := "General"
		if len(t.Departments) > 0 {
			dept = t.Departments[0]
		}
		byDept[dept] = append(byDept[dept], t.ID)
	}
	depts := make([]string, 0, len(byDept))
	for d := range byDept {
		depts = append(depts, d)
	}
	sort.Strings(depts)

	groups := make([]PlcGroup, 0, len(depts))
	for i, d := range depts {
		groups = append(groups, PlcGroup{
			ID:         fmt.Sprintf("plc-%d", i+1),
			Name:       d + " PLC",
			Period:     periods[i%len(periods)].ID,
			TeacherIDs: byDept[d],
		})
	}
	return groups
}

type availabilityBlock struct {
	teacherID string
	slots     []Slot
	reason    Reservation
}

// resolveAvailability expands availability periods into ledger slots. An
// unknown period or a term outside the schedule shape is a configuration error.
func resolveAvailability(cfg *Config, grid *TimeGrid, strategy PlacementStrategy) ([]availabilityBlock, error) {
	terms := termSet(strategy)
	out := make([]availabilityBlock, 0, len(cfg.Availability))
	for _, a := range cfg.Availability {
		reason := a.Reason
		if reason == "" {
			reason = ReservationBlocked
		}
		block := availabilityBlock{teacherID: a.TeacherID, reason: reason}
		for _, raw := range a.Periods {
			slot, err := ParseSlot(raw)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("availability of teacher %s: %v", a.TeacherID, err))
			}
			if _, ok := grid.Period(slot.Period); !ok {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("availability of teacher %s references unknown period %s", a.TeacherID, slot.Period))
			}
			if _, ok := terms[slot.resolvedTerm()]; !ok && slot.resolvedTerm() != TermFullYear {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("availability of teacher %s uses term %s outside %s", a.TeacherID, slot.Term, strategy.Type()))
			}
			block.slots = append(block.slots, slotsFor(slot, strategy)...)
		}
		out = append(out, block)
	}
	return out, nil
}

func termSet(strategy PlacementStrategy) map[Term]struct{} {
	terms := make(map[Term]struct{})
	for _, t := range strategy.Terms() {
		terms[t] = struct{}{}
	}
	return terms
}

type lockRequest struct {
	LockedSection
	slot Slot
}

// resolveLocks validates locked placements against the grid before any
// ledger exists.
func resolveLocks(cfg *Config, grid *TimeGrid, strategy PlacementStrategy) ([]lockRequest, error) {
	requests := make([]LockedSection, 0, len(cfg.LockedSections))
	requests = append(requests, cfg.LockedSections...)
	for _, c := range cfg.Constraints {
		if c.Type == ConstraintLockedPeriod {
			requests = append(requests, LockedSection{SectionID: c.SectionID, Period: c.Period, TeacherID: c.TeacherID})
		}
	}

	terms := termSet(strategy)
	out := make([]lockRequest, 0, len(requests))
	for _, req := range requests {
		slot, err := ParseSlot(req.Period)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("locked section %s: %v", req.SectionID, err))
		}
		period, ok := grid.Period(slot.Period)
		if !ok || !period.Type.Teaching() {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("locked section %s targets non-teaching period %s", req.SectionID, slot.Period))
		}
		if _, ok := terms[slot.resolvedTerm()]; !ok {
			if slot.resolvedTerm() != TermFullYear {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("locked section %s uses term %s outside %s", req.SectionID, slot.Term, strategy.Type()))
			}
			slot.Term = strategy.Terms()[0]
		}
		out = append(out, lockRequest{LockedSection: req, slot: slot})
	}
	return out, nil
}

func applyLocks(rc *runContext, locks []lockRequest) {
	for _, lock := range locks {
		sec, ok := rc.byID[lock.SectionID]
		if !ok {
			rc.log("lock_skipped", nil, &lock.slot, 0, "locked section %s does not exist", lock.SectionID)
			continue
		}
		p := Placement{
			SectionID:   sec.ID,
			Slot:        lock.slot,
			TeacherID:   firstNonEmpty(lock.TeacherID, sec.TeacherID),
			CoTeacherID: firstNonEmpty(lock.CoTeacherID, sec.CoTeacherID),
			RoomID:      sec.RoomID,
			Term:        lock.slot.resolvedTerm(),
		}
		if _, ok := rc.roomIndex[lock.RoomID]; ok {
			p.RoomID = lock.RoomID
		}
		if p.TeacherID == "" ||
			!rc.ledger.IsTeacherAvailable(p.TeacherID, p.Slot) ||
			!rc.ledger.IsTeacherAvailable(p.CoTeacherID, p.Slot) ||
			!rc.ledger.IsRoomAvailable(p.RoomID, p.Slot) {
			sec.Locked = true
			sec.flag("Locked Slot Unavailable")
			rc.conflict(Conflict{
				Type:      ConflictUnscheduled,
				Message:   fmt.Sprintf("%s section %d: locked slot %s is not available", sec.CourseName, sec.SectionNum, lock.slot),
				SectionID: sec.ID,
			})
			continue
		}
		sec.HasConflict = false
		sec.ConflictReason = ""
		rc.ledger.Assign(sec, p)
		sec.Locked = true
		rc.log("lock", sec, &lock.slot, 0, "locked %s into %s", sec.ID, lock.slot)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func buildResult(rc *runContext, coverage []PeriodCoverage) *Result {
	result := &Result{
		ScheduleType:     rc.cfg.ScheduleType,
		Seed:             rc.cfg.Seed,
		Sections:         rc.sections,
		Periods:          rc.grid.Periods,
		Logs:             rc.logs,
		Conflicts:        rc.conflicts,
		TeacherSchedules: make(map[string]map[string]string, len(rc.teachers)),
		RoomSchedules:    make(map[string]map[string]string, len(rc.rooms)),
		Coverage:         coverage,
		PLCGroups:        rc.plcGroups,
	}
	if result.Conflicts == nil {
		result.Conflicts = []Conflict{}
	}
	for _, t := range rc.teachers {
		result.TeacherSchedules[t.ID] = displayCells(rc.ledger.TeacherSlots(t.ID))
	}
	for _, r := range rc.rooms {
		result.RoomSchedules[r.ID] = displayCells(rc.ledger.RoomSlots(r.ID))
	}

	stats := Stats{
		TotalSections: len(rc.sections),
		TeacherCount:  len(rc.teachers),
		RoomCount:     len(rc.rooms),
		TotalStudents: rc.cfg.StudentCount,
		Conflicts:     len(result.Conflicts),
		Bumps:         rc.bumps,
	}
	for _, s := range rc.sections {
		if s.HasConflict {
			stats.ConflictSections++
		} else if s.Placed() {
			stats.ScheduledSections++
		}
	}
	result.Stats = stats
	return result
}

func displayCells(cells map[Slot]Occupant) map[string]string {
	out := make(map[string]string, len(cells))
	for slot, occ := range cells {
		out[slot.String()] = occ.String()
	}
	return out
}
