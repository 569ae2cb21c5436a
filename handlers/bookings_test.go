package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-desk/api"
	"court-desk/checker"
	"court-desk/types"
)

func TestHandleLogin_DeletesPassword(t *testing.T) {
	hs := newHarness(t)

	hs.h.HandleLogin(context.Background(), command("/login mphatso s3cret"))

	assert.Equal(t, []int{100}, hs.bot.deleted)
	assert.Equal(t, "✅ Logged in as mphatso (admin).", hs.bot.last().Text)

	hs.h.HandleWhoAmI(context.Background(), command("/whoami"))
	assert.Contains(t, hs.bot.last().Text, "Role: admin")
}

func TestHandleLogout_DiscardsWizard(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)
	ctx := context.Background()

	hs.h.HandleBook(ctx, command("/book"))
	hs.h.HandleLogout(ctx, command("/logout"))

	_, open := hs.h.wizardFor(testChat)
	assert.False(t, open)
	hs.h.HandleWhoAmI(ctx, command("/whoami"))
	assert.Equal(t, "🔒 Please /login first.", hs.bot.last().Text)
}

func TestHandleBookings_Filters(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)
	hs.api.bookings = []types.Booking{
		{ID: "b2", Customer: types.Customer{Name: "Thoko"}, TimeSlots: []string{"18:00-19:00 (Court B)"}, TotalAmount: 6000, Status: types.StatusCancelled},
		{ID: "b1", Customer: types.Customer{Name: "Chikondi"}, TimeSlots: []string{"09:00-10:00 (Court A)"}, TotalAmount: 5000, AmountPaid: 5000, Status: types.StatusConfirmed},
	}
	ctx := context.Background()

	hs.h.HandleBookings(ctx, command("/bookings"))
	hs.h.HandleBookings(ctx, command("/bookings confirmed 2026-10-20"))

	assert.Equal(t, []types.BookingFilter{
		{Date: testDate},
		{Date: "2026-10-20", Status: types.StatusConfirmed},
	}, hs.api.filters)

	out := hs.bot.last().Text
	assert.Less(t, strings.Index(out, "Chikondi"), strings.Index(out, "Thoko"))
	assert.Contains(t, out, "2 booking(s), MWK 5,000 booked")
}

func TestHandleBookings_BadArgument(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)

	hs.h.HandleBookings(context.Background(), command("/bookings tomorrow"))

	assert.Contains(t, hs.bot.last().Text, "usage: /bookings")
	assert.Empty(t, hs.api.filters)
}

func TestHandleBookings_MalformedDegradesToEmpty(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)
	hs.api.bookingsErr = fmt.Errorf("decode bookings: %w", api.ErrMalformedResponse)

	hs.h.HandleBookings(context.Background(), command("/bookings"))

	out := hs.bot.last().Text
	assert.Contains(t, out, "unexpected response")
	assert.Contains(t, out, "No bookings.")
}

func TestHandleBookingPay(t *testing.T) {
	tests := []struct {
		amount string
		want   types.PaymentStatus
	}{
		{"5000", types.PaymentPartial},
		{"9,000", types.PaymentPaid},
		{"0", types.PaymentUnpaid},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			hs := newHarness(t)
			hs.login(types.RoleCashier)
			hs.api.bookings = []types.Booking{{ID: "b1", TotalAmount: 9000}}

			hs.h.HandleBookingPay(context.Background(), command("/booking_pay b1 "+tt.amount))

			update, ok := hs.api.updates["b1"]
			require.True(t, ok)
			require.NotNil(t, update.PaymentStatus)
			assert.Equal(t, tt.want, *update.PaymentStatus)
			assert.Equal(t, []int64{0}, hs.dash.refreshes())
		})
	}
}

func TestHandleBookingPay_UnknownBooking(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)

	hs.h.HandleBookingPay(context.Background(), command("/booking_pay nope 100"))

	assert.Equal(t, "⚠️ Booking nope not found.", hs.bot.last().Text)
	assert.Empty(t, hs.api.updates)
}

func TestHandleBookingStatus(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)

	hs.h.HandleBookingStatus(context.Background(), command("/booking_status b1 Cancelled"))

	require.NotNil(t, hs.api.updates["b1"].Status)
	assert.Equal(t, types.StatusCancelled, *hs.api.updates["b1"].Status)
	assert.Nil(t, hs.api.updates["b1"].AmountPaid)
}

func TestWalkInCommands_UseWalkInEndpoint(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)
	hs.api.bookings = []types.Booking{{ID: "w1", TotalAmount: 7000}}
	ctx := context.Background()

	hs.h.HandleWalkInStatus(ctx, command("/walkin_status w1 completed"))
	require.NotNil(t, hs.api.walkInUpdates["w1"].Status)
	assert.Equal(t, types.StatusCompleted, *hs.api.walkInUpdates["w1"].Status)

	hs.h.HandleWalkInPay(ctx, command("/walkin_pay w1 3000"))
	update := hs.api.walkInUpdates["w1"]
	require.NotNil(t, update.AmountPaid)
	assert.Equal(t, types.Money(3000), *update.AmountPaid)
	assert.Equal(t, types.PaymentPartial, *update.PaymentStatus)

	assert.Empty(t, hs.api.updates)
	assert.Equal(t, []int64{0, 0}, hs.dash.refreshes())
}

func TestHandleWalkInStatus_Usage(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleCashier)

	hs.h.HandleWalkInStatus(context.Background(), command("/walkin_status w1"))

	assert.Equal(t, "usage: /walkin_status <id> <pending|confirmed|cancelled|completed>", hs.bot.last().Text)
	assert.Empty(t, hs.api.walkInUpdates)
}

func TestHandleExpenseUpdate(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleExpenseUpdate(context.Background(), command("/expense_update ex-1; utilities; MWK 40,000; Floodlights; 2026-10-17"))

	require.Len(t, hs.api.updatedExp, 1)
	assert.Equal(t, types.Expense{ID: "ex-1", Category: "utilities", Amount: 40000, Description: "Floodlights", Date: "2026-10-17"}, hs.api.updatedExp[0])
	assert.Equal(t, "✅ Expense ex-1 updated.", hs.bot.last().Text)
	assert.Equal(t, []int64{0}, hs.dash.refreshes())
}

func TestHandleExpenseUpdate_BadDate(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleExpenseUpdate(context.Background(), command("/expense_update ex-1; utilities; 100; x; 17/10/2026"))

	assert.Empty(t, hs.api.updatedExp)
	assert.Equal(t, `⚠️ Date: "17/10/2026" is not a date, use YYYY-MM-DD`, hs.bot.last().Text)
}

func TestHandleExpenses_MarksDemoData(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)
	hs.api.expenses = []types.Expense{
		{Category: "Utilities", Amount: 30000, Date: testDate + "T00:00:00Z", Mock: true},
		{Category: "Maintenance", Amount: 15000, Date: "2026-10-17", Mock: true},
	}

	hs.h.HandleExpenses(context.Background(), command("/expenses"))

	out := hs.bot.last().Text
	assert.Contains(t, out, "Demo data")
	assert.Contains(t, out, testDate+" · Utilities · MWK 30,000")
	assert.Contains(t, out, "Total: MWK 45,000")
}

func TestHandleExpenseAdd(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)

	hs.h.HandleExpenseAdd(context.Background(), command("/expense_add Utilities; 30,000; ESCOM bill"))

	require.Len(t, hs.api.createdExp, 1)
	assert.Equal(t, types.Expense{ID: "ex-new", Category: "Utilities", Amount: 30000, Description: "ESCOM bill", Date: testDate}, hs.api.createdExp[0])
	assert.Equal(t, []int64{0}, hs.dash.refreshes())
}

func TestHandleDashboard_Toggles(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)
	ctx := context.Background()

	hs.h.HandleDashboard(ctx, command("/dashboard"))
	assert.True(t, hs.subs.subs[testChat])
	assert.Equal(t, []int64{testChat}, hs.dash.refreshes())

	hs.h.HandleDashboard(ctx, command("/dashboard"))
	assert.False(t, hs.subs.subs[testChat])
	assert.Equal(t, "🔕 Dashboard updates stopped.", hs.bot.last().Text)
}

func TestHandleSummary(t *testing.T) {
	hs := newHarness(t)
	hs.login(types.RoleAdmin)
	hs.dash.summary = checker.Summary{Date: testDate, Counts: map[types.BookingStatus]int{types.StatusConfirmed: 2}, CollectedRevenue: 9000, Net: 9000}

	hs.h.HandleSummary(context.Background(), command("/summary"))

	assert.Equal(t, hs.dash.summary.Format(), hs.bot.last().Text)
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, types.PaymentPaid, paymentStatus(0, 0))
	assert.Equal(t, types.PaymentUnpaid, paymentStatus(0, 100))
	assert.Equal(t, types.PaymentPartial, paymentStatus(50, 100))
	assert.Equal(t, types.PaymentPaid, paymentStatus(100, 100))
}
