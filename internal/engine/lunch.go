package engine

import "sort"

// balanceLunchWaves assigns each department's split-lunch sections to one
// wave, largest departments first, always into the currently lightest wave.
func balanceLunchWaves(rc *runContext) {
	lunches := rc.grid.PeriodsOfType(PeriodTypeSplitLunch)
	if len(lunches) == 0 {
		return
	}
	lunch := lunches[0].ID
	waves, _ := lunchWaves(rc.cfg.Grid.Lunch)

	type deptLoad struct {
		department string
		students   int
		sections   []*Section
	}
	byDept := make(map[string]*deptLoad)
	for _, sec := range rc.sections {
		if sec.HasConflict || !sec.Placed() || sec.Slot.Period != lunch {
			continue
		}
		d := byDept[sec.Department]
		if d == nil {
			d = &deptLoad{department: sec.Department}
			byDept[sec.Department] = d
		}
		d.students += sec.Enrollment
		d.sections = append(d.sections, sec)
	}

	loads := make([]*deptLoad, 0, len(byDept))
	for _, d := range byDept {
		loads = append(loads, d)
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].students != loads[j].students {
			return loads[i].students > loads[j].students
		}
		return loads[i].department < loads[j].department
	})

	waveLoad := make([]int, waves)
	for _, d := range loads {
		lightest := 0
		for w := 1; w < waves; w++ {
			if waveLoad[w] < waveLoad[lightest] {
				lightest = w
			}
		}
		waveLoad[lightest] += d.students
		for _, sec := range d.sections {
			sec.LunchWave = lightest + 1
		}
		rc.log("lunch_wave", nil, nil, 0, "%s (%d students) assigned to wave %d", d.department, d.students, lightest+1)
	}
}
