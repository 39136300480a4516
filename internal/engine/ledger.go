package engine

// Occupant is what holds a teacher or room slot: a section or a reservation.
type Occupant struct {
	SectionID   string      `json:"sectionId,omitempty"`
	Reservation Reservation `json:"reservation,omitempty"`
}

// IsReservation reports whether the occupant is a non-section reservation.
func (o Occupant) IsReservation() bool {
	return o.Reservation != ""
}

func (o Occupant) String() string {
	if o.IsReservation() {
		return string(o.Reservation)
	}
	return o.SectionID
}

// Placement is a single commit through the Ledger.
type Placement struct {
	SectionID   string
	Slot        Slot
	TeacherID   string
	CoTeacherID string
	RoomID      string
	Term        Term
}

// Ledger tracks teacher and room occupancy per slot together with per-term
// teacher load. Strategies read it but only Assign/Remove/BlockTeacher write.
type Ledger struct {
	teachers     map[string]map[Slot]Occupant
	rooms        map[string]map[Slot]Occupant
	load         map[string]map[Term]int
	roomOwners   map[string]string
	ownedRooms   map[string]string
	slotSections map[Slot][]*Section
	maxLoad      int
}

// NewLedger returns an empty ledger with the given per-term load ceiling.
func NewLedger(maxLoad int) *Ledger {
	return &Ledger{
		teachers:     make(map[string]map[Slot]Occupant),
		rooms:        make(map[string]map[Slot]Occupant),
		load:         make(map[string]map[Term]int),
		roomOwners:   make(map[string]string),
		ownedRooms:   make(map[string]string),
		slotSections: make(map[Slot][]*Section),
		maxLoad:      maxLoad,
	}
}

// MaxLoad is the per-term section ceiling used by the cost function.
func (l *Ledger) MaxLoad() int {
	return l.maxLoad
}

// SetRoomOwner records static room ownership.
func (l *Ledger) SetRoomOwner(roomID, teacherID string) {
	l.roomOwners[roomID] = teacherID
	l.ownedRooms[teacherID] = roomID
}

// RoomOwner returns the teacher owning a room, or "".
func (l *Ledger) RoomOwner(roomID string) string {
	return l.roomOwners[roomID]
}

// OwnedRoom returns the room a teacher owns, or "".
func (l *Ledger) OwnedRoom(teacherID string) string {
	return l.ownedRooms[teacherID]
}

// BlockTeacher reserves a slot for a non-section reason. It returns false
// when the slot is already occupied.
func (l *Ledger) BlockTeacher(teacherID string, slot Slot, reason Reservation) bool {
	if !l.IsTeacherAvailable(teacherID, slot) {
		return false
	}
	cells := l.teachers[teacherID]
	if cells == nil {
		cells = make(map[Slot]Occupant)
		l.teachers[teacherID] = cells
	}
	cells[slot] = Occupant{Reservation: reason}
	return true
}

// IsTeacherAvailable reports whether nothing occupies the teacher at slot.
// An empty teacher id is always available.
func (l *Ledger) IsTeacherAvailable(teacherID string, slot Slot) bool {
	if teacherID == "" {
		return true
	}
	_, taken := l.teachers[teacherID][slot]
	return !taken
}

// IsRoomAvailable reports whether nothing occupies the room at slot.
func (l *Ledger) IsRoomAvailable(roomID string, slot Slot) bool {
	if roomID == "" {
		return true
	}
	_, taken := l.rooms[roomID][slot]
	return !taken
}

// Blocker returns what occupies the teacher at slot.
func (l *Ledger) Blocker(teacherID string, slot Slot) (Occupant, bool) {
	occ, ok := l.teachers[teacherID][slot]
	return occ, ok
}

// TeacherLoad is the number of sections committed for a teacher in a term.
func (l *Ledger) TeacherLoad(teacherID string, term Term) int {
	return l.load[teacherID][term]
}

// SectionsAt lists the sections committed to a slot.
func (l *Ledger) SectionsAt(slot Slot) []*Section {
	return l.slotSections[slot]
}

// Assign commits a placement and stamps it onto the section.
func (l *Ledger) Assign(sec *Section, p Placement) {
	term := p.Term
	if term == "" {
		term = p.Slot.resolvedTerm()
	}
	occ := Occupant{SectionID: sec.ID}
	for _, teacherID := range []string{p.TeacherID, p.CoTeacherID} {
		if teacherID == "" {
			continue
		}
		cells := l.teachers[teacherID]
		if cells == nil {
			cells = make(map[Slot]Occupant)
			l.teachers[teacherID] = cells
		}
		cells[p.Slot] = occ
		loads := l.load[teacherID]
		if loads == nil {
			loads = make(map[Term]int)
			l.load[teacherID] = loads
		}
		loads[term]++
	}
	if p.RoomID != "" {
		cells := l.rooms[p.RoomID]
		if cells == nil {
			cells = make(map[Slot]Occupant)
			l.rooms[p.RoomID] = cells
		}
		cells[p.Slot] = occ
	}
	l.slotSections[p.Slot] = append(l.slotSections[p.Slot], sec)

	slot := p.Slot
	sec.Slot = &slot
	sec.Term = term
	sec.TeacherID = p.TeacherID
	sec.CoTeacherID = p.CoTeacherID
	sec.RoomID = p.RoomID
}

// Remove is the inverse of Assign. Entries are cleared only while they still
// point at the section, so a stale removal never evicts another occupant.
func (l *Ledger) Remove(sec *Section, p Placement) {
	term := p.Term
	if term == "" {
		term = p.Slot.resolvedTerm()
	}
	for _, teacherID := range []string{p.TeacherID, p.CoTeacherID} {
		if teacherID == "" {
			continue
		}
		cells := l.teachers[teacherID]
		if occ, ok := cells[p.Slot]; !ok || occ.SectionID != sec.ID {
			continue
		}
		delete(cells, p.Slot)
		if len(cells) == 0 {
			delete(l.teachers, teacherID)
		}
		if loads := l.load[teacherID]; loads[term] > 0 {
			loads[term]--
			if loads[term] == 0 {
				delete(loads, term)
			}
			if len(loads) == 0 {
				delete(l.load, teacherID)
			}
		}
	}
	if p.RoomID != "" {
		cells := l.rooms[p.RoomID]
		if occ, ok := cells[p.Slot]; ok && occ.SectionID == sec.ID {
			delete(cells, p.Slot)
			if len(cells) == 0 {
				delete(l.rooms, p.RoomID)
			}
		}
	}

	list := l.slotSections[p.Slot]
	for i, s := range list {
		if s.ID == sec.ID {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(l.slotSections, p.Slot)
	} else {
		l.slotSections[p.Slot] = list
	}

	if sec.Slot != nil && *sec.Slot == p.Slot {
		sec.Slot = nil
		sec.Term = ""
	}
}

// placementOf reconstructs the placement currently stamped on a section.
func placementOf(sec *Section) Placement {
	p := Placement{
		SectionID:   sec.ID,
		TeacherID:   sec.TeacherID,
		CoTeacherID: sec.CoTeacherID,
		RoomID:      sec.RoomID,
		Term:        sec.Term,
	}
	if sec.Slot != nil {
		p.Slot = *sec.Slot
	}
	return p
}

// TeacherSlots returns a copy of a teacher's occupancy.
func (l *Ledger) TeacherSlots(teacherID string) map[Slot]Occupant {
	return copyCells(l.teachers[teacherID])
}

// RoomSlots returns a copy of a room's occupancy.
func (l *Ledger) RoomSlots(roomID string) map[Slot]Occupant {
	return copyCells(l.rooms[roomID])
}

func copyCells(cells map[Slot]Occupant) map[Slot]Occupant {
	out := make(map[Slot]Occupant, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	return out
}
