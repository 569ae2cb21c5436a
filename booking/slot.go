package booking

import (
	"time"

	"court-desk/types"
)

// SlotState is how a timeslot shows to the operator.
type SlotState int

const (
	SlotAvailable SlotState = iota
	SlotSelected
	SlotOccupied
	SlotExpired
)

func (s SlotState) String() string {
	switch s {
	case SlotSelected:
		return "selected"
	case SlotOccupied:
		return "occupied"
	case SlotExpired:
		return "expired"
	}
	return "available"
}

// OccupiedSet holds the booked start times ("HH:MM") of one court on one date.
type OccupiedSet map[string]struct{}

// NewOccupiedSet builds the set from start times already normalised to "HH:MM".
func NewOccupiedSet(times []string) OccupiedSet {
	set := make(OccupiedSet, len(times))
	for _, t := range times {
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether a slot starting at start is already booked.
func (o OccupiedSet) Has(start string) bool {
	_, ok := o[start]
	return ok
}

// ResolveSlot decides how a timeslot is shown for the selected date.
// Expired wins over occupied, which wins over selected.
// now must already be in the venue's time zone.
func ResolveSlot(ts types.Timeslot, date string, selected map[string]bool, occupied OccupiedSet, now time.Time) SlotState {
	if date == now.Format("2006-01-02") && ts.StartTime <= now.Format("15:04") {
		return SlotExpired
	}
	if occupied.Has(ts.StartTime) {
		return SlotOccupied
	}
	if selected[ts.ID] {
		return SlotSelected
	}
	return SlotAvailable
}
