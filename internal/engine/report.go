package engine

import "fmt"

// unaccountedThreshold is how many students may be outside class or lunch in
// a teaching period before a coverage conflict is raised.
const unaccountedThreshold = 50

func reportCoverage(rc *runContext) []PeriodCoverage {
	students := rc.cfg.StudentCount
	terms := rc.strategy.Terms()
	waves, _ := lunchWaves(rc.cfg.Grid.Lunch)
	multi := len(rc.grid.PeriodsOfType(PeriodTypeMultiLunch))

	coverage := make([]PeriodCoverage, 0, len(rc.grid.Periods))
	for _, p := range rc.grid.Periods {
		seats := 0
		for _, term := range terms {
			for _, sec := range rc.ledger.SectionsAt(Slot{Term: term, Period: p.ID}) {
				if !sec.HasConflict {
					seats += sec.Enrollment
				}
			}
		}
		seats /= len(terms)

		c := PeriodCoverage{PeriodID: p.ID, Label: p.Label, Type: p.Type, SeatsInClass: seats}
		switch p.Type {
		case PeriodTypeUnitLunch:
			c.AtLunch, c.AtLunchLabel = students, "All"
		case PeriodTypeSplitLunch:
			c.AtLunch, c.AtLunchLabel = students/waves, "Waves"
		case PeriodTypeMultiLunch:
			c.AtLunch, c.AtLunchLabel = students/multi, "Rotation"
		case PeriodTypeWIN, PeriodTypeRecess:
			c.AtLunch, c.AtLunchLabel = students, p.Label
		}
		c.Unaccounted = students - seats - c.AtLunch
		if c.Unaccounted < 0 {
			c.Unaccounted = 0
		}
		if p.Type.Teaching() && c.Unaccounted > unaccountedThreshold {
			rc.conflict(Conflict{
				Type:    ConflictCoverage,
				Message: fmt.Sprintf("%s has %d students unaccounted for", p.Label, c.Unaccounted),
			})
		}
		coverage = append(coverage, c)
	}
	return coverage
}

// reportPlanViolations flags teachers whose busiest term leaves fewer free
// teaching periods than their plan and PLC commitments require.
func reportPlanViolations(rc *runContext) {
	teaching := len(rc.grid.TeachingPeriods())
	for _, t := range rc.teachers {
		busiest := 0
		for _, term := range rc.strategy.Terms() {
			if load := rc.ledger.TeacherLoad(t.ID, term); load > busiest {
				busiest = load
			}
		}
		expected := rc.cfg.PlanPeriods
		if t.PlanPeriods > 0 {
			expected = t.PlanPeriods
		}
		if rc.cfg.PLCEnabled {
			expected++
		}
		free := teaching - busiest
		if free >= expected {
			continue
		}
		name := t.Name
		if name == "" {
			name = t.ID
		}
		rc.conflict(Conflict{
			Type:      ConflictPlanViolation,
			Message:   fmt.Sprintf("%s has %d free periods (needs %d for Plan/PLC)", name, free, expected),
			TeacherID: t.ID,
		})
	}
}
