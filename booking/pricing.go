package booking

import (
	"sort"

	"court-desk/types"
)

// Quote is the price breakdown of a draft. Total never goes below zero.
type Quote struct {
	Timeslots types.Money
	Equipment types.Money
	Discount  types.Money
	Total     types.Money
}

// Price sums the timeslots and equipment lines, subtracts the discount and floors
// the result at zero. Equipment is billed once per booking, not per hour.
func Price(slots []types.Timeslot, lines []types.EquipmentLine, discount types.Money) Quote {
	q := Quote{Discount: discount}
	for _, s := range slots {
		q.Timeslots += s.Price
	}
	for _, l := range lines {
		q.Equipment += l.LineTotal
	}

	q.Total = q.Timeslots + q.Equipment - discount
	if q.Total < 0 {
		q.Total = 0
	}
	return q
}

// EquipmentLines turns quantities into priced lines, skipping zero quantities
// and IDs missing from the catalog. Lines are ordered by name.
func EquipmentLines(catalog []types.Equipment, quantities map[string]int) []types.EquipmentLine {
	lines := make([]types.EquipmentLine, 0, len(quantities))
	for _, item := range catalog {
		qty := quantities[item.ID]
		if qty <= 0 {
			continue
		}
		lines = append(lines, types.EquipmentLine{
			EquipmentID: item.ID,
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    qty,
			LineTotal:   item.UnitPrice * types.Money(qty),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}
