package engine

import "fmt"

// Soft penalties of the placement cost function.
const (
	costOverload         = 500
	costRoomTaken        = 100
	costElectiveOverlap  = 200
	costTermImbalance    = 150
	costSingletonClash   = 1000
	costSingletonPerSlot = 50
	costCrowding         = 10
)

// place scores every candidate slot in seeded random order and commits the
// cheapest. When no slot is feasible it tries a single-level repair before
// flagging gridlock.
func (s *termStrategy) place(rc *runContext, sec *Section, slots []Slot) {
	candidates := make([]Slot, len(slots))
	copy(candidates, slots)
	rc.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	bestCost := -1
	var (
		bestSlot Slot
		bestRoom string
	)
	for _, slot := range candidates {
		cost, room, ok := s.evaluate(rc, sec, slot)
		if !ok {
			continue
		}
		if bestCost < 0 || cost < bestCost {
			bestCost, bestSlot, bestRoom = cost, slot, room
		}
	}
	if bestCost >= 0 {
		commit(rc, sec, bestSlot, bestRoom, bestCost, "place")
		return
	}

	if s.repair(rc, sec, candidates) {
		return
	}

	sec.flag(s.gridlock)
	rc.conflict(Conflict{
		Type:      ConflictUnscheduled,
		Message:   fmt.Sprintf("%s section %d: No valid slot found (%s)", sec.CourseName, sec.SectionNum, s.gridlock),
		SectionID: sec.ID,
		TeacherID: sec.TeacherID,
	})
	rc.log("gridlock", sec, nil, 0, "no valid slot for %s", sec.ID)
}

// evaluate returns the cost of putting sec into slot together with the room
// it would use. ok is false when the slot is hard-rejected.
func (s *termStrategy) evaluate(rc *runContext, sec *Section, slot Slot) (cost int, room string, ok bool) {
	if !rc.ledger.IsTeacherAvailable(sec.TeacherID, slot) || !rc.ledger.IsTeacherAvailable(sec.CoTeacherID, slot) {
		return 0, "", false
	}
	room, ok = rc.resolveRoom(sec, slot)
	if !ok {
		return 0, "", false
	}

	if rc.ledger.TeacherLoad(sec.TeacherID, slot.resolvedTerm()) >= rc.ledger.MaxLoad() {
		cost += costOverload
	}
	if sec.RoomID != "" && !rc.ledger.IsRoomAvailable(sec.RoomID, slot) {
		cost += costRoomTaken
	}

	occupants := rc.ledger.SectionsAt(slot)
	if !sec.IsCore {
		for _, other := range occupants {
			if other.CourseID == sec.CourseID {
				cost += costElectiveOverlap
				break
			}
		}
	}
	if s.balanceTerms {
		cost += s.termImbalance(rc, sec, slot.resolvedTerm())
	}
	if sec.IsSingleton {
		singletons, clash := 0, false
		for _, other := range occupants {
			if !other.IsSingleton {
				continue
			}
			singletons++
			if other.Department == sec.Department {
				clash = true
			}
		}
		if clash {
			cost += costSingletonClash + costSingletonPerSlot*singletons
		}
	}
	cost += costCrowding * len(occupants)
	return cost, room, true
}

// termImbalance penalises a term that already holds more sections of the
// course than the average of the other terms.
func (s *termStrategy) termImbalance(rc *runContext, sec *Section, term Term) int {
	if len(s.terms) < 2 {
		return 0
	}
	counts := make(map[Term]int, len(s.terms))
	for _, other := range rc.byCourse[sec.CourseID] {
		if other.Placed() {
			counts[other.Term]++
		}
	}
	others := 0
	for _, t := range s.terms {
		if t != term {
			others += counts[t]
		}
	}
	if counts[term]*(len(s.terms)-1) > others {
		return costTermImbalance
	}
	return 0
}

// resolveRoom picks the room a section would use at slot. With no rooms
// configured every slot is room-feasible.
func (rc *runContext) resolveRoom(sec *Section, slot Slot) (string, bool) {
	if len(rc.rooms) == 0 {
		return "", true
	}
	if r, ok := rc.roomIndex[sec.RoomID]; ok && r.fits(sec.RoomType, sec.Enrollment) && rc.ledger.IsRoomAvailable(r.ID, slot) {
		return r.ID, true
	}
	fallback := ""
	for _, r := range rc.rooms {
		if !r.fits(sec.RoomType, sec.Enrollment) || !rc.ledger.IsRoomAvailable(r.ID, slot) {
			continue
		}
		// Vacated home rooms go first; unowned space is kept for owners.
		if rc.ledger.RoomOwner(r.ID) != "" {
			return r.ID, true
		}
		if fallback == "" {
			fallback = r.ID
		}
	}
	return fallback, fallback != ""
}

func commit(rc *runContext, sec *Section, slot Slot, room string, cost int, action string) {
	rc.ledger.Assign(sec, Placement{
		SectionID:   sec.ID,
		Slot:        slot,
		TeacherID:   sec.TeacherID,
		CoTeacherID: sec.CoTeacherID,
		RoomID:      room,
		Term:        slot.resolvedTerm(),
	})
	rc.log(action, sec, &slot, cost, "%s placed in %s", sec.ID, slot)
}
