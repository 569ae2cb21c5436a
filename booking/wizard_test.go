package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-desk/types"
)

func TestWizard_steps(t *testing.T) {
	w := NewWizard(newBackend())
	assert.Equal(t, StepDate, w.Step())

	w.SetDate(tomorrow)
	assert.Equal(t, StepCourts, w.Step())

	assert.ErrorIs(t, w.Advance(), ErrNoSlotSelected)
	assert.Equal(t, StepCourts, w.Step())

	_, err := w.Selection().ToggleCourt(context.Background(), courtA)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Advance(), ErrNoSlotSelected, "a court without slots does not count")

	_, err = w.Selection().ToggleSlot("ca", "a9", now)
	require.NoError(t, err)
	require.NoError(t, w.Advance())
	assert.Equal(t, StepEquipment, w.Step())

	require.NoError(t, w.Advance())
	require.NoError(t, w.Advance())
	assert.Equal(t, StepCustomer, w.Step())

	w.Back()
	w.Back()
	w.Back()
	w.Back()
	assert.Equal(t, StepDate, w.Step())
}

func TestWizard_ChangeQuantity(t *testing.T) {
	w := NewWizard(newBackend())
	w.SetEquipmentCatalog([]types.Equipment{
		{ID: "eq-few", Name: "Few", UnitPrice: 100, Stock: 3, Active: true},
		{ID: "eq-many", Name: "Many", UnitPrice: 100, Stock: 50, Active: true},
		{ID: "eq-off", Name: "Off", UnitPrice: 100, Stock: 50, Active: false},
	})
	assert.Len(t, w.EquipmentCatalog(), 2)

	for i := 0; i < 3; i++ {
		_, err := w.ChangeQuantity("eq-few", 1)
		require.NoError(t, err)
	}
	qty, err := w.ChangeQuantity("eq-few", 1)
	assert.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 3, w.Quantity("eq-few"))

	for i := 0; i < types.MaxPerBooking; i++ {
		_, err := w.ChangeQuantity("eq-many", 1)
		require.NoError(t, err)
	}
	_, err = w.ChangeQuantity("eq-many", 1)
	assert.ErrorIs(t, err, ErrStockExceeded)

	qty, err = w.ChangeQuantity("eq-few", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	_, err = w.ChangeQuantity("eq-off", 1)
	assert.ErrorIs(t, err, ErrUnknownEquipment)
}

func TestWizard_catalogRefreshDropsVanishedItems(t *testing.T) {
	w := NewWizard(newBackend())
	w.SetEquipmentCatalog([]types.Equipment{racket, balls})
	_, err := w.ChangeQuantity("eq-balls", 2)
	require.NoError(t, err)

	w.SetEquipmentCatalog([]types.Equipment{racket})
	assert.Equal(t, 0, w.Quantity("eq-balls"))
}

func TestWizard_amounts(t *testing.T) {
	w := NewWizard(newBackend())
	assert.ErrorIs(t, w.SetDiscount(-1), ErrNegativeAmount)
	assert.ErrorIs(t, w.SetAmountPaid(-1), ErrNegativeAmount)

	w.SetDate(tomorrow)
	_, err := w.Selection().ToggleCourt(context.Background(), courtA)
	require.NoError(t, err)
	_, err = w.Selection().ToggleSlot("ca", "a9", now)
	require.NoError(t, err)

	require.NoError(t, w.SetDiscount(1000))
	d := w.Draft()
	assert.Equal(t, types.Money(4000), d.Quote.Total)
	assert.Equal(t, types.Money(4000), d.AmountPaid, "amount paid follows the total by default")

	require.NoError(t, w.SetAmountPaid(2500))
	assert.Equal(t, types.Money(2500), w.Draft().AmountPaid)
}

func TestParseCustomer(t *testing.T) {
	testCases := []struct {
		in      string
		want    types.Customer
		wantErr bool
	}{
		{in: "Chikondi Banda", want: types.Customer{Name: "Chikondi Banda"}},
		{in: " Chikondi ; 0999123456 ", want: types.Customer{Name: "Chikondi", Phone: "0999123456"}},
		{in: "Chikondi;0999123456;c@example.mw", want: types.Customer{Name: "Chikondi", Phone: "0999123456", Email: "c@example.mw"}},
		{in: "Chikondi;;c@example.mw", want: types.Customer{Name: "Chikondi", Email: "c@example.mw"}},
		{in: " ; 0999", wantErr: true},
		{in: "", wantErr: true},
		{in: "Chikondi;;not-an-email", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseCustomer(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
