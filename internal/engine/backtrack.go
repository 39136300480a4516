package engine

// repair attempts a single-level bump: find a slot where the section's
// teacher is held by another unlocked section, move that section to some
// other slot it fits, and take the freed slot. Every move is rolled back
// when the original section still does not fit.
func (s *termStrategy) repair(rc *runContext, sec *Section, candidates []Slot) bool {
	if sec.TeacherID == "" {
		return false
	}
	for _, slot := range candidates {
		occ, taken := rc.ledger.Blocker(sec.TeacherID, slot)
		if !taken || occ.IsReservation() {
			continue
		}
		victim, ok := rc.byID[occ.SectionID]
		if !ok || victim.Locked || !victim.Placed() {
			continue
		}
		from := placementOf(victim)

		for _, target := range candidates {
			if target == slot {
				continue
			}
			if !rc.ledger.IsTeacherAvailable(victim.TeacherID, target) || !rc.ledger.IsTeacherAvailable(victim.CoTeacherID, target) {
				continue
			}
			room, ok := rc.resolveRoom(victim, target)
			if !ok {
				continue
			}

			rc.ledger.Remove(victim, from)
			moved := Placement{
				SectionID:   victim.ID,
				Slot:        target,
				TeacherID:   victim.TeacherID,
				CoTeacherID: victim.CoTeacherID,
				RoomID:      room,
				Term:        target.resolvedTerm(),
			}
			rc.ledger.Assign(victim, moved)

			if cost, secRoom, ok := s.evaluate(rc, sec, slot); ok {
				rc.bumps++
				rc.log("bump", victim, &target, 0, "%s moved from %s to %s", victim.ID, from.Slot, target)
				commit(rc, sec, slot, secRoom, cost, "place_after_bump")
				return true
			}

			rc.ledger.Remove(victim, moved)
			rc.ledger.Assign(victim, from)
		}
	}
	return false
}
