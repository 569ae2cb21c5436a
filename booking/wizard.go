package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"court-desk/types"
)

// Step is the wizard page the operator is on.
type Step int

const (
	StepDate Step = iota + 1
	StepCourts
	StepEquipment
	StepCustomer
)

// State tracks a submission through the pipeline.
type State int

const (
	StateDraft State = iota
	StateValidating
	StateRechecking
	StateSubmitting
	StateCommitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateRechecking:
		return "rechecking"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	}
	return "draft"
}

func (s State) inFlight() bool {
	return s == StateValidating || s == StateRechecking || s == StateSubmitting
}

var (
	ErrNoSlotSelected   = errors.New("select at least one timeslot")
	ErrStockExceeded    = errors.New("not enough stock")
	ErrUnknownEquipment = errors.New("unknown equipment")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
)

// Wizard is the transient booking draft of one chat. It is never persisted.
type Wizard struct {
	mu sync.Mutex

	selection  *Selection
	step       Step
	equipment  []types.Equipment
	quantities map[string]int
	customer   types.Customer
	method     types.PaymentMethod
	discount   types.Money
	amountPaid *types.Money
	notes      string
	staff      bool
	state      State
}

// NewWizard starts a staff draft at the date step.
func NewWizard(loader Loader) *Wizard {
	return &Wizard{
		selection:  NewSelection(loader),
		step:       StepDate,
		quantities: make(map[string]int),
		staff:      true,
	}
}

func (w *Wizard) Selection() *Selection {
	return w.selection
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetDate picks the booking date and moves to court selection.
func (w *Wizard) SetDate(date string) {
	w.selection.SetDate(date)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepCourts
}

// Advance moves to the next step. Court selection cannot be left without a slot.
func (w *Wizard) Advance() error {
	if w.Step() == StepCourts && !w.selection.HasSelection() {
		return ErrNoSlotSelected
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step < StepCustomer {
		w.step++
	}
	return nil
}

// Back returns to the previous step. The draft is kept.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepDate {
		w.step--
	}
}

// SetEquipmentCatalog keeps the active items. Quantities for items that vanished are dropped.
func (w *Wizard) SetEquipmentCatalog(items []types.Equipment) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.equipment = w.equipment[:0]
	known := make(map[string]bool, len(items))
	for _, item := range items {
		if !item.Active {
			continue
		}
		w.equipment = append(w.equipment, item)
		known[item.ID] = true
	}
	for id := range w.quantities {
		if !known[id] {
			delete(w.quantities, id)
		}
	}
}

// EquipmentCatalog returns a copy of the active items.
func (w *Wizard) EquipmentCatalog() []types.Equipment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.Equipment(nil), w.equipment...)
}

// ChangeQuantity adds delta to an item's quantity. Going below zero clamps to zero;
// going above min(stock, 10) is refused.
func (w *Wizard) ChangeQuantity(equipmentID string, delta int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var item *types.Equipment
	for i := range w.equipment {
		if w.equipment[i].ID == equipmentID {
			item = &w.equipment[i]
			break
		}
	}
	if item == nil {
		return 0, ErrUnknownEquipment
	}

	qty := w.quantities[equipmentID] + delta
	if qty < 0 {
		qty = 0
	}
	if qty > item.MaxSelectable() {
		return w.quantities[equipmentID], fmt.Errorf("%w: at most %d %s", ErrStockExceeded, item.MaxSelectable(), item.Name)
	}
	if qty == 0 {
		delete(w.quantities, equipmentID)
	} else {
		w.quantities[equipmentID] = qty
	}
	return qty, nil
}

func (w *Wizard) Quantity(equipmentID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quantities[equipmentID]
}

func (w *Wizard) SetCustomer(c types.Customer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.customer = c
}

func (w *Wizard) SetPaymentMethod(m types.PaymentMethod) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.method = m
}

// SetDiscount sets a flat discount off the total.
func (w *Wizard) SetDiscount(d types.Money) error {
	if d < 0 {
		return ErrNegativeAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discount = d
	return nil
}

// SetAmountPaid overrides the amount paid. Without an override it follows the total.
func (w *Wizard) SetAmountPaid(a types.Money) error {
	if a < 0 {
		return ErrNegativeAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.amountPaid = &a
	return nil
}

func (w *Wizard) SetNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes = notes
}

// Draft is a consistent copy of the wizard for pricing, review and submission.
type Draft struct {
	Date       string
	Courts     []SelectedCourt
	Equipment  []types.Equipment
	Quantities map[string]int
	Lines      []types.EquipmentLine
	Customer   types.Customer
	Method     types.PaymentMethod
	Quote      Quote
	AmountPaid types.Money
	Notes      string
	Staff      bool
}

func (d Draft) SlotCount() int {
	n := 0
	for _, c := range d.Courts {
		n += len(c.Slots)
	}
	return n
}

// Draft snapshots the wizard with the quote computed.
func (w *Wizard) Draft() Draft {
	date := w.selection.Date()
	courts := w.selection.Selected()

	w.mu.Lock()
	defer w.mu.Unlock()

	var slots []types.Timeslot
	for _, c := range courts {
		slots = append(slots, c.Slots...)
	}
	lines := EquipmentLines(w.equipment, w.quantities)
	quote := Price(slots, lines, w.discount)

	paid := quote.Total
	if w.amountPaid != nil {
		paid = *w.amountPaid
	}

	quantities := make(map[string]int, len(w.quantities))
	for id, q := range w.quantities {
		quantities[id] = q
	}

	return Draft{
		Date:       date,
		Courts:     courts,
		Equipment:  append([]types.Equipment(nil), w.equipment...),
		Quantities: quantities,
		Lines:      lines,
		Customer:   w.customer,
		Method:     w.method,
		Quote:      quote,
		AmountPaid: paid,
		Notes:      w.notes,
		Staff:      w.staff,
	}
}

// begin moves the wizard into Validating unless a submission is already running.
func (w *Wizard) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.inFlight() {
		return ErrSubmitInProgress
	}
	w.state = StateValidating
	return nil
}

func (w *Wizard) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// commit clears the draft after a successful submission.
func (w *Wizard) commit() {
	w.selection.Reset()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepDate
	w.equipment = nil
	w.quantities = make(map[string]int)
	w.customer = types.Customer{}
	w.method = ""
	w.discount = 0
	w.amountPaid = nil
	w.notes = ""
	w.state = StateCommitted
}

// Close discards the draft. Loads still in flight are ignored when they land.
func (w *Wizard) Close() {
	w.selection.Close()
}

// ParseCustomer reads "name; phone; email". Only the name is required.
func ParseCustomer(text string) (types.Customer, error) {
	parts := strings.Split(text, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	c := types.Customer{Name: parts[0]}
	if len(parts) > 1 {
		c.Phone = parts[1]
	}
	if len(parts) > 2 {
		c.Email = parts[2]
	}
	if c.Name == "" {
		return types.Customer{}, errors.New("customer name is required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return types.Customer{}, fmt.Errorf("%q is not an email address", c.Email)
	}
	return c, nil
}
