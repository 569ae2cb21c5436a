package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"court-desk/booking"
	"court-desk/logging"
	"court-desk/types"
)

// ===== Step 3: equipment =====

func (h *Handler) renderEquipment(ctx context.Context, chatID int64, cw *chatWizard, reload bool) {
	if reload || cw.wizard.EquipmentCatalog() == nil {
		items, err := h.API.Equipment(ctx)
		if err != nil {
			// Equipment is optional, so the wizard continues with an empty catalog.
			logging.FromContext(ctx).WithError(err).Warn("failed to load equipment")
			h.reply(chatID, "⚠️ Could not load equipment: "+userError(err))
		}
		cw.wizard.SetEquipmentCatalog(items)
	}

	items := cw.wizard.EquipmentCatalog()
	h.show(chatID, cw, equipmentText(cw.wizard.Draft()), equipmentKeyboard(items, cw.wizard.Quantity))
}

func equipmentText(d booking.Draft) string {
	var b strings.Builder
	b.WriteString("🏸 Step 3/4: Equipment\n\n")
	if len(d.Equipment) == 0 {
		b.WriteString("No equipment available. Tap Next to continue.")
		return b.String()
	}
	b.WriteString("Use − and + to set quantities (up to 10 of each, within stock).\n")
	for _, l := range d.Lines {
		fmt.Fprintf(&b, "\n%s × %d = %s", l.Name, l.Quantity, l.LineTotal)
	}
	fmt.Fprintf(&b, "\n\nEquipment: %s", d.Quote.Equipment)
	return b.String()
}

func equipmentKeyboard(items []types.Equipment, quantity func(id string) int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for idx, item := range items {
		label := fmt.Sprintf("%s ×%d · %s", item.Name, quantity(item.ID), item.UnitPrice)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("−", fmt.Sprintf("eqdec:%d", idx)),
			tgbotapi.NewInlineKeyboardButtonData(label, "noop"),
			tgbotapi.NewInlineKeyboardButtonData("+", fmt.Sprintf("eqinc:%d", idx)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", "wback"),
		tgbotapi.NewInlineKeyboardButtonData("✅ Next", "equip_done"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) HandleEquipmentChange(ctx context.Context, cq *tgbotapi.CallbackQuery, idxStr string, delta int) {
	ctx, cw, ok := h.wizardStep(ctx, cq, booking.StepEquipment)
	if !ok {
		return
	}

	items := cw.wizard.EquipmentCatalog()
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx >= len(items) {
		h.answer(cq, "⚠️ Equipment not found")
		return
	}
	item := items[idx]

	qty, err := cw.wizard.ChangeQuantity(item.ID, delta)
	if errors.Is(err, booking.ErrStockExceeded) {
		h.answer(cq, fmt.Sprintf("Only %d %s available", item.MaxSelectable(), item.Name))
		return
	}
	if err != nil {
		h.answer(cq, "⚠️ "+err.Error())
		return
	}

	cw.setMessage(cq.Message.MessageID)
	h.renderEquipment(ctx, cq.Message.Chat.ID, cw, false)
	h.answer(cq, fmt.Sprintf("%s ×%d", item.Name, qty))
}

// HandleEquipmentDone moves to the review and asks for the customer if none is set.
func (h *Handler) HandleEquipmentDone(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	_, cw, ok := h.wizardStep(ctx, cq, booking.StepEquipment)
	if !ok {
		return
	}
	if err := cw.wizard.Advance(); err != nil {
		h.answer(cq, "⚠️ "+err.Error())
		return
	}
	h.answer(cq, "")
	cw.setMessage(cq.Message.MessageID)

	chatID := cq.Message.Chat.ID
	h.renderCheckout(chatID, cw)
	if cw.wizard.Draft().Customer.Name == "" {
		cw.setAwaiting(inputCustomer)
		h.reply(chatID, customerPrompt)
	}
}

// ===== Step 4: customer and payment =====

const customerPrompt = "👤 Send the customer as: name; phone; email (phone and email optional)"

func (h *Handler) renderCheckout(chatID int64, cw *chatWizard) {
	d := cw.wizard.Draft()
	h.show(chatID, cw, checkoutText(d), checkoutKeyboard(d.Method))
}

func checkoutText(d booking.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Step 4/4: Review\n\n📅 %s\n", d.Date)
	for _, c := range d.Courts {
		for _, ts := range c.Slots {
			fmt.Fprintf(&b, "🎾 %s · %s\n", booking.SlotLabel(ts, c.Court.Name), ts.Price)
		}
	}
	for _, l := range d.Lines {
		fmt.Fprintf(&b, "🏸 %s × %d · %s\n", l.Name, l.Quantity, l.LineTotal)
	}

	fmt.Fprintf(&b, "\nTimeslots: %s\nEquipment: %s\n", d.Quote.Timeslots, d.Quote.Equipment)
	if d.Quote.Discount > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", d.Quote.Discount)
	}
	fmt.Fprintf(&b, "Total: %s\n", d.Quote.Total)
	fmt.Fprintf(&b, "Amount paid: %s\n\n", d.AmountPaid)

	customer := "not set"
	if d.Customer.Name != "" {
		customer = d.Customer.Name
		if d.Customer.Phone != "" {
			customer += ", " + d.Customer.Phone
		}
		if d.Customer.Email != "" {
			customer += ", " + d.Customer.Email
		}
	}
	fmt.Fprintf(&b, "👤 %s\n", customer)

	method := "not set"
	if d.Method != "" {
		method = d.Method.Title()
	}
	fmt.Fprintf(&b, "💳 %s", method)
	return b.String()
}

func checkoutKeyboard(selected types.PaymentMethod) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range types.PaymentMethods {
		label := m.Title()
		if m == selected {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "pay:"+string(m)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Customer", "edit:customer"),
			tgbotapi.NewInlineKeyboardButtonData("🏷 Discount", "edit:discount"),
			tgbotapi.NewInlineKeyboardButtonData("💵 Paid", "edit:paid"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", "wback"),
			tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "wcancel"),
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) HandlePayment(ctx context.Context, cq *tgbotapi.CallbackQuery, method string) {
	_, cw, ok := h.wizardStep(ctx, cq, booking.StepCustomer)
	if !ok {
		return
	}

	m := types.PaymentMethod(method)
	known := false
	for _, pm := range types.PaymentMethods {
		if pm == m {
			known = true
		}
	}
	if !known {
		h.answer(cq, "⚠️ Unknown payment method")
		return
	}

	cw.wizard.SetPaymentMethod(m)
	cw.setMessage(cq.Message.MessageID)
	h.renderCheckout(cq.Message.Chat.ID, cw)
	h.answer(cq, "💳 "+m.Title())
}

func (h *Handler) HandleEdit(ctx context.Context, cq *tgbotapi.CallbackQuery, field string) {
	_, cw, ok := h.wizardStep(ctx, cq, booking.StepCustomer)
	if !ok {
		return
	}

	chatID := cq.Message.Chat.ID
	switch field {
	case "customer":
		cw.setAwaiting(inputCustomer)
		h.reply(chatID, customerPrompt)
	case "discount":
		cw.setAwaiting(inputDiscount)
		h.reply(chatID, "🏷 Send the discount in MWK, e.g. 1000")
	case "paid":
		cw.setAwaiting(inputAmountPaid)
		h.reply(chatID, "💵 Send the amount paid in MWK, e.g. 5000")
	default:
		h.answer(cq, "⚠️ Unknown field")
		return
	}
	h.answer(cq, "")
}

// HandleText consumes free text the wizard is waiting for.
func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cw, ok := h.wizardFor(chatID)
	if !ok || cw.awaitingInput() == inputNone {
		h.reply(chatID, "Send /book to start a booking or /start for help.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch cw.awaitingInput() {
	case inputCustomer:
		c, err := booking.ParseCustomer(text)
		if err != nil {
			h.reply(chatID, "⚠️ "+err.Error()+"\n"+customerPrompt)
			return
		}
		cw.wizard.SetCustomer(c)
	case inputDiscount:
		v, err := parseMoney(text)
		if err == nil {
			err = cw.wizard.SetDiscount(v)
		}
		if err != nil {
			h.reply(chatID, "⚠️ "+err.Error())
			return
		}
	case inputAmountPaid:
		v, err := parseMoney(text)
		if err == nil {
			err = cw.wizard.SetAmountPaid(v)
		}
		if err != nil {
			h.reply(chatID, "⚠️ "+err.Error())
			return
		}
	}

	cw.setAwaiting(inputNone)
	// The review moves below the staff reply so it stays visible.
	cw.setMessage(0)
	h.renderCheckout(chatID, cw)
}

// HandleConfirm submits the draft. On conflict the wizard returns to the courts step
// with the taken slots removed.
func (h *Handler) HandleConfirm(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	ctx, cw, ok := h.wizardStep(ctx, cq, booking.StepCustomer)
	if !ok {
		return
	}
	chatID := cq.Message.Chat.ID
	h.answer(cq, "⏳ Submitting...")

	req := booking.BuildRequest(cw.wizard.Draft())
	b, err := h.submitter.Submit(ctx, cw.wizard)
	var (
		invalid  *booking.ValidationError
		conflict *booking.ConflictError
	)
	switch {
	case err == nil:
		h.releaseWizard(chatID, cw)
		_, _ = h.Bot.Send(tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, confirmationText(b.ID, req)))
	case errors.Is(err, booking.ErrSubmitInProgress):
		h.reply(chatID, "⏳ This booking is already being submitted.")
	case errors.As(err, &invalid):
		h.reply(chatID, "⚠️ The booking is incomplete:\n• "+strings.Join(invalid.Problems, "\n• "))
	case errors.As(err, &conflict):
		var lines []string
		for _, c := range conflict.Conflicts {
			lines = append(lines, "• "+c.Label)
		}
		// Strip the review buttons. The wizard continues in a new message below.
		_, _ = h.Bot.Send(tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, "⛔ Not confirmed: some timeslots were taken."))
		h.reply(chatID, "⛔ These timeslots were just booked by someone else and were removed:\n"+
			strings.Join(lines, "\n")+"\nPick other timeslots and confirm again.")
		cw.wizard.Back()
		cw.wizard.Back()
		cw.setMessage(0)
		h.renderCourts(chatID, cw)
	default:
		h.fail(ctx, chatID, "Booking", err)
		h.reply(chatID, "Nothing was saved. Your draft is kept, tap Confirm to try again.")
	}
}

// confirmationText renders what was sent. The backend may answer with an ID only.
func confirmationText(id string, b types.WalkInBookingRequest) string {
	var sb strings.Builder
	sb.WriteString("✅ Booking confirmed\n\n")
	if id != "" {
		fmt.Fprintf(&sb, "ID: %s\n", id)
	}
	fmt.Fprintf(&sb, "📅 %s\n", b.Date)
	for _, s := range b.TimeSlots {
		fmt.Fprintf(&sb, "🎾 %s\n", s)
	}
	for _, l := range b.Equipment {
		fmt.Fprintf(&sb, "🏸 %s × %d\n", l.Name, l.Quantity)
	}
	fmt.Fprintf(&sb, "👤 %s\n", b.Customer.Name)
	fmt.Fprintf(&sb, "Total: %s, paid: %s (%s)", b.TotalAmount, b.AmountPaid, b.PaymentStatus)
	return sb.String()
}
