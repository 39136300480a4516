package engine

import (
	"fmt"
	"strings"
)

// Term is a sub-year track. Terms of one schedule shape are independent:
// the same period in two terms never clashes.
type Term string

const (
	TermFullYear Term = "FY"
	TermA        Term = "A"
	TermB        Term = "B"
	TermS1       Term = "S1"
	TermS2       Term = "S2"
	TermT1       Term = "T1"
	TermT2       Term = "T2"
	TermT3       Term = "T3"
)

var knownTerms = map[Term]struct{}{
	TermFullYear: {}, TermA: {}, TermB: {},
	TermS1: {}, TermS2: {},
	TermT1: {}, TermT2: {}, TermT3: {},
}

// Slot is the atomic bookable unit: a period inside a term.
type Slot struct {
	Term   Term
	Period PeriodID
}

// FullYear returns the untagged slot of a period.
func FullYear(period PeriodID) Slot {
	return Slot{Term: TermFullYear, Period: period}
}

func (s Slot) resolvedTerm() Term {
	if s.Term == "" {
		return TermFullYear
	}
	return s.Term
}

// String is the display encoding: "3" for full-year slots, "S1-3" otherwise.
func (s Slot) String() string {
	term := s.resolvedTerm()
	if term == TermFullYear {
		return string(s.Period)
	}
	return fmt.Sprintf("%s-%s", term, s.Period)
}

// MarshalText implements encoding.TextMarshaler.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSlot decodes a display slot. A value without a known term prefix is a
// full-year slot.
func ParseSlot(raw string) (Slot, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Slot{}, fmt.Errorf("empty slot")
	}
	if idx := strings.Index(raw, "-"); idx > 0 {
		term := Term(strings.ToUpper(raw[:idx]))
		if _, ok := knownTerms[term]; ok {
			period := raw[idx+1:]
			if period == "" {
				return Slot{}, fmt.Errorf("slot %q has no period", raw)
			}
			return Slot{Term: term, Period: PeriodID(period)}, nil
		}
	}
	return FullYear(PeriodID(raw)), nil
}
