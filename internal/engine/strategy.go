package engine

import (
	"fmt"
	"sort"

	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

// ScheduleType selects the placement strategy.
type ScheduleType string

const (
	ScheduleStandard   ScheduleType = "standard"
	ScheduleABBlock    ScheduleType = "ab_block"
	ScheduleFourByFour ScheduleType = "4x4_block"
	ScheduleTrimester  ScheduleType = "trimester"
)

// ScheduleTypes lists every supported schedule shape.
var ScheduleTypes = []ScheduleType{ScheduleStandard, ScheduleABBlock, ScheduleFourByFour, ScheduleTrimester}

// PlacementStrategy decides the slot space and the order sections are
// placed in. All variants share the cost function and repair step.
type PlacementStrategy interface {
	Type() ScheduleType
	Terms() []Term
	GenerateSlots(grid *TimeGrid) []Slot
	Execute(rc *runContext, sections []*Section) error
}

// termStrategy is parameterised by its term set. Strategies differ only in
// the terms they expose, whether singletons go first, whether term balance
// is scored, and how gridlock is labelled.
type termStrategy struct {
	kind           ScheduleType
	terms          []Term
	singletonFirst bool
	balanceTerms   bool
	gridlock       string
}

// NewStrategy returns the strategy for a schedule type.
func NewStrategy(kind ScheduleType) (PlacementStrategy, error) {
	switch kind {
	case ScheduleStandard, "":
		return &termStrategy{
			kind:           ScheduleStandard,
			terms:          []Term{TermFullYear},
			singletonFirst: true,
			gridlock:       "Scheduling Gridlock",
		}, nil
	case ScheduleABBlock:
		return &termStrategy{
			kind:           ScheduleABBlock,
			terms:          []Term{TermA, TermB},
			singletonFirst: true,
			gridlock:       "A/B Scheduling Gridlock",
		}, nil
	case ScheduleFourByFour:
		return &termStrategy{
			kind:         ScheduleFourByFour,
			terms:        []Term{TermS1, TermS2},
			balanceTerms: true,
			gridlock:     "Semester Block Gridlock",
		}, nil
	case ScheduleTrimester:
		return &termStrategy{
			kind:         ScheduleTrimester,
			terms:        []Term{TermT1, TermT2, TermT3},
			balanceTerms: true,
			gridlock:     "Trimester Gridlock",
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unknown schedule type %q", kind))
	}
}

func (s *termStrategy) Type() ScheduleType { return s.kind }

func (s *termStrategy) Terms() []Term {
	out := make([]Term, len(s.terms))
	copy(out, s.terms)
	return out
}

// GenerateSlots returns every teaching period in every term, period-major.
func (s *termStrategy) GenerateSlots(grid *TimeGrid) []Slot {
	periods := grid.TeachingPeriods()
	slots := make([]Slot, 0, len(periods)*len(s.terms))
	for _, p := range periods {
		for _, term := range s.terms {
			slots = append(slots, Slot{Term: term, Period: p.ID})
		}
	}
	return slots
}

// Execute places every unlocked, unflagged section. Cancellation is checked
// between placements.
func (s *termStrategy) Execute(rc *runContext, sections []*Section) error {
	queue := make([]*Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Locked || sec.HasConflict || sec.Placed() {
			continue
		}
		queue = append(queue, sec)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if s.singletonFirst && a.IsSingleton != b.IsSingleton {
			return a.IsSingleton
		}
		if a.IsCore != b.IsCore {
			return a.IsCore
		}
		return false
	})

	slots := s.GenerateSlots(rc.grid)
	for i, sec := range queue {
		if err := rc.ctx.Err(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrRunCancelled.Code, appErrors.ErrRunCancelled.Status, appErrors.ErrRunCancelled.Message)
		}
		s.place(rc, sec, slots)
		if rc.cfg.Progress != nil {
			rc.cfg.Progress(i+1, len(queue))
		}
	}
	return nil
}
