package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"court-desk/booking"
	"court-desk/logging"
	"court-desk/types"
)

const bookingDays = 7

type inputKind int

const (
	inputNone inputKind = iota
	inputCustomer
	inputDiscount
	inputAmountPaid
)

// chatWizard is the booking wizard of one chat plus the bot-side state around it.
type chatWizard struct {
	mu        sync.Mutex
	wizard    *booking.Wizard
	courts    []types.Court
	messageID int
	awaiting  inputKind
}

func (cw *chatWizard) court(idx int) (types.Court, bool) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if idx < 0 || idx >= len(cw.courts) {
		return types.Court{}, false
	}
	return cw.courts[idx], true
}

func (cw *chatWizard) courtList() []types.Court {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return append([]types.Court(nil), cw.courts...)
}

func (cw *chatWizard) setAwaiting(k inputKind) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.awaiting = k
}

func (cw *chatWizard) awaitingInput() inputKind {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.awaiting
}

func (cw *chatWizard) setMessage(id int) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.messageID = id
}

func (cw *chatWizard) message() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.messageID
}

func (h *Handler) wizardFor(chatID int64) (*chatWizard, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cw, ok := h.wizards[chatID]
	return cw, ok
}

func (h *Handler) openWizard(chatID int64) *chatWizard {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.wizards[chatID]; ok {
		old.wizard.Close()
	}
	cw := &chatWizard{wizard: booking.NewWizard(h.API)}
	h.wizards[chatID] = cw
	return cw
}

// closeWizard discards whatever wizard the chat has open.
func (h *Handler) closeWizard(chatID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cw, ok := h.wizards[chatID]
	if !ok {
		return false
	}
	cw.wizard.Close()
	delete(h.wizards, chatID)
	return true
}

// releaseWizard closes cw only while it is still the chat's wizard. A /book that
// arrived in the meantime keeps its own draft.
func (h *Handler) releaseWizard(chatID int64, cw *chatWizard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wizards[chatID] != cw {
		return
	}
	cw.wizard.Close()
	delete(h.wizards, chatID)
}

// wizardCallback authorizes a wizard callback and returns the chat's wizard.
func (h *Handler) wizardCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) (context.Context, *chatWizard, bool) {
	chatID := cq.Message.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, false)
	if !ok {
		h.answer(cq, "Not logged in")
		return ctx, nil, false
	}
	cw, ok := h.wizardFor(chatID)
	if !ok {
		h.answer(cq, "This booking was closed. Start again with /book")
		return ctx, nil, false
	}
	return ctx, cw, true
}

// wizardStep is wizardCallback for buttons that belong to one step. Buttons left
// on an older message are refused once the wizard has moved on.
func (h *Handler) wizardStep(ctx context.Context, cq *tgbotapi.CallbackQuery, step booking.Step) (context.Context, *chatWizard, bool) {
	ctx, cw, ok := h.wizardCallback(ctx, cq)
	if !ok {
		return ctx, nil, false
	}
	if cw.wizard.Step() != step {
		h.answer(cq, staleStep)
		return ctx, nil, false
	}
	return ctx, cw, true
}

const staleStep = "This step is no longer active. Use the latest message."

// show edits the wizard message in place, or sends a new one when there is none.
func (h *Handler) show(chatID int64, cw *chatWizard, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if id := cw.message(); id != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, id, text, markup)
		if _, err := h.Bot.Send(edit); err == nil {
			return
		}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	sent, err := h.Bot.Send(msg)
	if err != nil {
		logging.FromContext(context.Background()).WithError(err).WithField("chat_id", chatID).Warn("failed to send wizard step")
		return
	}
	cw.setMessage(sent.MessageID)
}

// HandleBook starts a new walk-in booking. An open draft in the chat is discarded.
func (h *Handler) HandleBook(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, _, ok := h.authorize(ctx, chatID, false); !ok {
		return
	}
	cw := h.openWizard(chatID)
	h.sendDateSelection(chatID, cw)
}

func (h *Handler) HandleCancel(ctx context.Context, msg *tgbotapi.Message) {
	if !h.closeWizard(msg.Chat.ID) {
		h.reply(msg.Chat.ID, "There is no booking in progress.")
		return
	}
	h.reply(msg.Chat.ID, "✖ Booking discarded.")
}

func (h *Handler) HandleWizardCancel(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	h.closeWizard(cq.Message.Chat.ID)
	h.answer(cq, "Discarded")
	_, _ = h.Bot.Send(tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, "✖ Booking discarded."))
}

// ===== Step 1: date =====

func (h *Handler) sendDateSelection(chatID int64, cw *chatWizard) {
	h.show(chatID, cw, "📅 Step 1/4: Pick a date", dateKeyboard(h.localNow()))
}

func dateKeyboard(today time.Time) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < bookingDays; i++ {
		d := today.AddDate(0, 0, i)
		label := d.Format("Mon 02 Jan")
		if i == 0 {
			label = "Today · " + label
		}
		btn := tgbotapi.NewInlineKeyboardButtonData(label, "date:"+d.Format("2006-01-02"))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "wcancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) HandleDate(ctx context.Context, cq *tgbotapi.CallbackQuery, date string) {
	ctx, cw, ok := h.wizardCallback(ctx, cq)
	if !ok {
		return
	}
	chatID := cq.Message.Chat.ID

	if _, err := time.ParseInLocation("2006-01-02", date, h.Loc); err != nil {
		h.answer(cq, "⚠️ Invalid date")
		return
	}

	courts, err := h.API.Courts(ctx)
	if err != nil {
		h.answer(cq, "⚠️ Could not load courts")
		h.fail(ctx, chatID, "Loading courts", err)
		return
	}
	active := lo.Filter(courts, func(c types.Court, _ int) bool { return c.Active })
	if len(active) == 0 {
		h.answer(cq, "No active courts")
		h.reply(chatID, "⚠️ There are no active courts to book.")
		return
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })

	cw.mu.Lock()
	cw.courts = active
	cw.messageID = cq.Message.MessageID
	cw.mu.Unlock()

	cw.wizard.SetDate(date)
	h.answer(cq, "📅 "+date)
	h.renderCourts(chatID, cw)
}

// ===== Step 2: courts and timeslots =====

func (h *Handler) renderCourts(chatID int64, cw *chatWizard) {
	views := cw.wizard.Selection().View(h.localNow())
	h.show(chatID, cw, courtsText(cw.wizard.Selection().Date(), views), courtsKeyboard(cw.courtList(), views))
}

func courtsText(date string, views []booking.CourtView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎾 Step 2/4: Courts and timeslots for %s\n\n", date)
	b.WriteString("Tap a court to select it, then tap its timeslots.\n")
	b.WriteString("✅ selected  ⛔ booked  ⌛ already started")
	for _, v := range views {
		if v.Warning != "" {
			b.WriteString("\n\n⚠️ " + v.Warning)
		}
		if len(v.Slots) == 0 {
			fmt.Fprintf(&b, "\n\n%s has no timeslots.", v.Court.Name)
		}
	}
	return b.String()
}

func slotLabel(v booking.SlotView) string {
	switch v.State {
	case booking.SlotSelected:
		return "✅ " + v.Timeslot.StartTime
	case booking.SlotOccupied:
		return "⛔ " + v.Timeslot.StartTime
	case booking.SlotExpired:
		return "⌛ " + v.Timeslot.StartTime
	}
	return v.Timeslot.StartTime
}

// courtsKeyboard lists every court (by index, to stay under the 64-byte callback limit)
// and, under each selected court, its timeslots three per row.
func courtsKeyboard(courts []types.Court, views []booking.CourtView) tgbotapi.InlineKeyboardMarkup {
	byCourt := make(map[string]booking.CourtView, len(views))
	for _, v := range views {
		byCourt[v.Court.ID] = v
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for idx, court := range courts {
		name := court.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		view, selected := byCourt[court.ID]
		label := fmt.Sprintf("%s · %s/h", name, court.HourlyPrice)
		if selected {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("wcourt:%d", idx)),
		))
		if !selected {
			continue
		}

		var row []tgbotapi.InlineKeyboardButton
		for _, s := range view.Slots {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(slotLabel(s), fmt.Sprintf("wslot:%d:%s", idx, s.Timeslot.ID)))
			if len(row) == 3 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", "wback"),
		tgbotapi.NewInlineKeyboardButtonData("✅ Next", "courts_done"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// HandleCourtToggle selects or deselects a court. Selecting loads its timeslots
// and occupancy.
func (h *Handler) HandleCourtToggle(ctx context.Context, cq *tgbotapi.CallbackQuery, idxStr string) {
	ctx, cw, ok := h.wizardStep(ctx, cq, booking.StepCourts)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		h.answer(cq, "⚠️ Invalid court")
		return
	}
	court, ok := cw.court(idx)
	if !ok {
		h.answer(cq, "⚠️ Court not found")
		return
	}

	selected, err := cw.wizard.Selection().ToggleCourt(ctx, court)
	switch {
	case errors.Is(err, booking.ErrStaleLoad):
		h.answer(cq, "Selection changed")
		return
	case err != nil:
		logging.FromContext(ctx).WithError(err).WithField("court_id", court.ID).Warn("failed to load court")
		h.answer(cq, "⚠️ Could not load timeslots: "+userError(err))
		return
	}

	cw.setMessage(cq.Message.MessageID)
	h.renderCourts(cq.Message.Chat.ID, cw)
	if selected {
		h.answer(cq, "✅ "+court.Name)
	} else {
		h.answer(cq, court.Name+" removed")
	}
}

func (h *Handler) HandleSlotToggle(ctx context.Context, cq *tgbotapi.CallbackQuery, data string) {
	_, cw, ok := h.wizardStep(ctx, cq, booking.StepCourts)
	if !ok {
		return
	}

	idxStr, slotID, found := strings.Cut(data, ":")
	idx, err := strconv.Atoi(idxStr)
	if !found || err != nil {
		h.answer(cq, "⚠️ Invalid timeslot")
		return
	}
	court, ok := cw.court(idx)
	if !ok {
		h.answer(cq, "⚠️ Court not found")
		return
	}

	if _, err := cw.wizard.Selection().ToggleSlot(court.ID, slotID, h.localNow()); err != nil {
		h.answer(cq, "⚠️ "+err.Error())
		return
	}

	cw.setMessage(cq.Message.MessageID)
	h.renderCourts(cq.Message.Chat.ID, cw)
	h.answer(cq, "Updated")
}

func (h *Handler) HandleCourtsDone(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	ctx, cw, ok := h.wizardStep(ctx, cq, booking.StepCourts)
	if !ok {
		return
	}
	if err := cw.wizard.Advance(); err != nil {
		h.answer(cq, "⚠️ "+err.Error())
		return
	}
	h.answer(cq, "✅ Timeslots selected")
	cw.setMessage(cq.Message.MessageID)
	h.renderEquipment(ctx, cq.Message.Chat.ID, cw, true)
}

// HandleBack goes one step back and redraws it.
func (h *Handler) HandleBack(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	ctx, cw, ok := h.wizardCallback(ctx, cq)
	if !ok {
		return
	}
	cw.wizard.Back()
	cw.setAwaiting(inputNone)
	cw.setMessage(cq.Message.MessageID)
	h.answer(cq, "")

	chatID := cq.Message.Chat.ID
	switch cw.wizard.Step() {
	case booking.StepDate:
		h.sendDateSelection(chatID, cw)
	case booking.StepCourts:
		h.renderCourts(chatID, cw)
	case booking.StepEquipment:
		h.renderEquipment(ctx, chatID, cw, false)
	default:
		h.renderCheckout(chatID, cw)
	}
}
