package booking

import (
	"time"

	"court-desk/api"
	"court-desk/types"
)

const (
	today    = "2026-10-18"
	tomorrow = "2026-10-19"
)

var (
	now = time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

	courtA = types.Court{ID: "ca", Name: "Court A", Category: "Indoor", HourlyPrice: 5000, Active: true}
	courtB = types.Court{ID: "cb", Name: "Court B", Category: "Outdoor", HourlyPrice: 4000, Active: true}

	slotA8  = types.Timeslot{ID: "a8", CourtID: "ca", StartTime: "08:00", EndTime: "09:00", Price: 4000, Active: true}
	slotA9  = types.Timeslot{ID: "a9", CourtID: "ca", StartTime: "09:00", EndTime: "10:00", Price: 5000, Active: true}
	slotA10 = types.Timeslot{ID: "a10", CourtID: "ca", StartTime: "10:00", EndTime: "11:00", Price: 5000, Peak: true, Active: true}
	slotB18 = types.Timeslot{ID: "b18", CourtID: "cb", StartTime: "18:00", EndTime: "19:00", Price: 6000, Active: true}

	racket = types.Equipment{ID: "eq-racket", Name: "Racket", UnitPrice: 2000, Stock: 5, Active: true}
	balls  = types.Equipment{ID: "eq-balls", Name: "Balls", UnitPrice: 500, Stock: 40, Active: true}
)

func clock() time.Time { return now }

func newBackend() *api.BackendMock {
	return &api.BackendMock{
		Slots: []types.Timeslot{slotA8, slotA9, slotA10, slotB18},
	}
}
