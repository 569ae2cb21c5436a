package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-desk/types"
)

func TestAdminCommands_ForbiddenForCashier(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)

	hs.h.HandleCourtAdd(context.Background(), command("/court_add Court C; Indoor; 6000"))

	assert.Equal(t, "⛔ this command needs an admin account.", hs.bot.last().Text)
	assert.Empty(t, hs.api.createdCourts)
}

func TestHandleCourtAdd(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleCourtAdd(context.Background(), command("/court_add Court C; Indoor; MWK 6,000"))

	require.Len(t, hs.api.createdCourts, 1)
	assert.Equal(t, types.Court{ID: "c-new", Name: "Court C", Category: "Indoor", HourlyPrice: 6000, Active: true}, hs.api.createdCourts[0])
	assert.Equal(t, "✅ Court Court C added (id c-new).", hs.bot.last().Text)
}

func TestHandleCourtAdd_Usage(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleCourtAdd(context.Background(), command("/court_add Court C"))

	assert.Equal(t, "usage: /court_add name;category;hourly_price", hs.bot.last().Text)
	assert.Empty(t, hs.api.createdCourts)
}

func TestHandleCourtUpdate(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleCourtUpdate(context.Background(), command("/court_update ca; Court A; Indoor; 5500; no"))

	require.Len(t, hs.api.createdCourts, 1)
	assert.Equal(t, types.Court{ID: "ca", Name: "Court A", Category: "Indoor", HourlyPrice: 5500}, hs.api.createdCourts[0])
}

func TestHandleCourts_ListsSorted(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleCourts(context.Background(), command("/courts"))

	out := hs.bot.last().Text
	assert.Contains(t, out, "Court X · Outdoor · MWK 4,000/h · inactive")
	assert.Less(t, strings.Index(out, "Court A"), strings.Index(out, "Court B"))
}

func TestHandleTimeslotAdd(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    *types.Timeslot
		message string
	}{
		{
			name: "normalises times",
			args: "ca; 9:00; 10:00; 5000; yes",
			want: &types.Timeslot{ID: "ts-new", CourtID: "ca", StartTime: "09:00", EndTime: "10:00", Price: 5000, Peak: true, Active: true},
		},
		{
			name:    "end before start",
			args:    "ca; 10:00; 09:00; 5000; no",
			message: "⚠️ The end time must be after the start time.",
		},
		{
			name:    "bad clock",
			args:    "ca; 25:00; 26:00; 5000; no",
			message: `⚠️ Start: "25:00" is not a time, use HH:MM`,
		},
		{
			name:    "bad peak flag",
			args:    "ca; 09:00; 10:00; 5000; maybe",
			message: `⚠️ Peak: "maybe" is not yes/no`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			hs.login(types.RoleAdmin)

			hs.h.HandleTimeslotAdd(context.Background(), command("/timeslot_add "+tt.args))

			if tt.want == nil {
				assert.Empty(t, hs.api.createdSlots)
				assert.Equal(t, tt.message, hs.bot.last().Text)
				return
			}
			require.Len(t, hs.api.createdSlots, 1)
			assert.Equal(t, *tt.want, hs.api.createdSlots[0])
		})
	}
}

func TestHandleTimeslotUpdate(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleTimeslotUpdate(context.Background(), command("/timeslot_update a9; ca; 9:00; 10:30; 5500; no; no"))

	require.Len(t, hs.api.updatedSlots, 1)
	assert.Equal(t, types.Timeslot{ID: "a9", CourtID: "ca", StartTime: "09:00", EndTime: "10:30", Price: 5500}, hs.api.updatedSlots[0])
	assert.Equal(t, "✅ Timeslot 09:00-10:30 updated.", hs.bot.last().Text)
}

func TestHandleTimeslotUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		message string
	}{
		{"usage", "a9; ca; 09:00", "usage: /timeslot_update id;court_id;HH:MM;HH:MM;price;peak;active"},
		{"missing id", "; ca; 09:00; 10:00; 5000; no; yes", "⚠️ Timeslot id is required."},
		{"bad active flag", "a9; ca; 09:00; 10:00; 5000; no; perhaps", `⚠️ Active: "perhaps" is not yes/no`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			hs.login(types.RoleAdmin)

			hs.h.HandleTimeslotUpdate(context.Background(), command("/timeslot_update "+tt.args))

			assert.Empty(t, hs.api.updatedSlots)
			assert.Equal(t, tt.message, hs.bot.last().Text)
		})
	}
}

func TestHandleTimeslots_FiltersByCourt(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleTimeslots(context.Background(), command("/timeslots cb"))

	out := hs.bot.last().Text
	assert.Contains(t, out, "18:00-19:00 · MWK 6,000 · id b18")
	assert.NotContains(t, out, "a9")
}

func TestDeleteCommands(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)
	ctx := context.Background()

	hs.h.HandleCourtDelete(ctx, command("/court_del ca"))
	hs.h.HandleEquipmentDelete(ctx, command("/equipment_del eq-racket"))
	hs.h.HandleTimeslotDelete(ctx, command("/timeslot_del a9"))
	hs.h.HandleBookingDelete(ctx, command("/booking_del bk-1"))
	hs.h.HandleWalkInDelete(ctx, command("/walkin_del bk-2"))
	hs.h.HandleExpenseDelete(ctx, command("/expense_del ex-1"))
	hs.h.HandleCourtDelete(ctx, command("/court_del"))

	assert.Equal(t, []string{
		"court:ca", "equipment:eq-racket", "timeslot:a9",
		"booking:bk-1", "walkin:bk-2", "expense:ex-1",
	}, hs.api.deleted)
	assert.Equal(t, "usage: /court_del id", hs.bot.last().Text)
	// Booking and expense deletes change the day's figures.
	assert.Equal(t, []int64{0, 0, 0}, hs.dash.refreshes())
}

func TestEquipmentFromFields(t *testing.T) {
	item, err := equipmentFromFields("eq1", "Racket", "2,000", "5", "yes")
	require.NoError(t, err)
	assert.Equal(t, types.Equipment{ID: "eq1", Name: "Racket", UnitPrice: 2000, Stock: 5, Active: true}, item)

	_, err = equipmentFromFields("", "Racket", "2000", "-1", "yes")
	assert.Error(t, err)
	_, err = equipmentFromFields("", "", "2000", "1", "yes")
	assert.Error(t, err)
}
