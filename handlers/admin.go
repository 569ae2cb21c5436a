package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"court-desk/types"
)

// Catalog management. Every command here is admin-only.

func (h *Handler) HandleCourts(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	courts, err := h.API.Courts(ctx)
	if err != nil {
		h.fail(ctx, chatID, "Loading courts", err)
		return
	}
	if len(courts) == 0 {
		h.reply(chatID, "No courts yet. Add one with /court_add name;category;hourly_price")
		return
	}
	sort.Slice(courts, func(i, j int) bool { return courts[i].Name < courts[j].Name })

	var b strings.Builder
	b.WriteString("🎾 Courts\n")
	for _, c := range courts {
		status := "active"
		if !c.Active {
			status = "inactive"
		}
		fmt.Fprintf(&b, "\n%s · %s · %s/h · %s\nid: %s\n", c.Name, c.Category, c.HourlyPrice, status, c.ID)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) HandleCourtAdd(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 3, "/court_add name;category;hourly_price")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	price, err := parseMoney(f[2])
	if err != nil {
		h.reply(chatID, "⚠️ Hourly price: "+err.Error())
		return
	}

	court, err := h.API.CreateCourt(ctx, types.Court{Name: f[0], Category: f[1], HourlyPrice: price, Active: true})
	if err != nil {
		h.fail(ctx, chatID, "Adding court", err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Court %s added (id %s).", f[0], court.ID))
}

func (h *Handler) HandleCourtUpdate(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 5, "/court_update id;name;category;hourly_price;active")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	price, err := parseMoney(f[3])
	if err != nil {
		h.reply(chatID, "⚠️ Hourly price: "+err.Error())
		return
	}
	active, err := parseBool(f[4])
	if err != nil {
		h.reply(chatID, "⚠️ Active: "+err.Error())
		return
	}

	court := types.Court{ID: f[0], Name: f[1], Category: f[2], HourlyPrice: price, Active: active}
	if err := h.API.UpdateCourt(ctx, court); err != nil {
		h.fail(ctx, chatID, "Updating court", err)
		return
	}
	h.reply(chatID, "✅ Court "+court.Name+" updated.")
}

func (h *Handler) HandleCourtDelete(ctx context.Context, msg *tgbotapi.Message) {
	h.deleteByID(ctx, msg, "/court_del id", "Deleting court", h.API.DeleteCourt)
}

func (h *Handler) HandleEquipmentList(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	items, err := h.API.Equipment(ctx)
	if err != nil {
		h.fail(ctx, chatID, "Loading equipment", err)
		return
	}
	if len(items) == 0 {
		h.reply(chatID, "No equipment yet. Add some with /equipment_add name;unit_price;stock")
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	var b strings.Builder
	b.WriteString("🏸 Equipment\n")
	for _, e := range items {
		status := "active"
		if !e.Active {
			status = "inactive"
		}
		fmt.Fprintf(&b, "\n%s · %s each · stock %d · %s\nid: %s\n", e.Name, e.UnitPrice, e.Stock, status, e.ID)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) HandleEquipmentAdd(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 3, "/equipment_add name;unit_price;stock")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	item, err := equipmentFromFields("", f[0], f[1], f[2], "yes")
	if err != nil {
		h.reply(chatID, "⚠️ "+err.Error())
		return
	}

	created, err := h.API.CreateEquipment(ctx, item)
	if err != nil {
		h.fail(ctx, chatID, "Adding equipment", err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ %s added (id %s).", item.Name, created.ID))
}

func (h *Handler) HandleEquipmentUpdate(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 5, "/equipment_update id;name;unit_price;stock;active")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	item, err := equipmentFromFields(f[0], f[1], f[2], f[3], f[4])
	if err != nil {
		h.reply(chatID, "⚠️ "+err.Error())
		return
	}

	if err := h.API.UpdateEquipment(ctx, item); err != nil {
		h.fail(ctx, chatID, "Updating equipment", err)
		return
	}
	h.reply(chatID, "✅ "+item.Name+" updated.")
}

func equipmentFromFields(id, name, price, stock, active string) (types.Equipment, error) {
	if name == "" {
		return types.Equipment{}, fmt.Errorf("name is required")
	}
	unit, err := parseMoney(price)
	if err != nil {
		return types.Equipment{}, fmt.Errorf("unit price: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(stock))
	if err != nil || n < 0 {
		return types.Equipment{}, fmt.Errorf("stock %q must be a whole number, 0 or more", stock)
	}
	on, err := parseBool(active)
	if err != nil {
		return types.Equipment{}, fmt.Errorf("active: %w", err)
	}
	return types.Equipment{ID: id, Name: name, UnitPrice: unit, Stock: n, Active: on}, nil
}

func (h *Handler) HandleEquipmentDelete(ctx context.Context, msg *tgbotapi.Message) {
	h.deleteByID(ctx, msg, "/equipment_del id", "Deleting equipment", h.API.DeleteEquipment)
}

func (h *Handler) HandleTimeslots(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	slots, err := h.API.Timeslots(ctx)
	if err != nil {
		h.fail(ctx, chatID, "Loading timeslots", err)
		return
	}
	if courtID := strings.TrimSpace(msg.CommandArguments()); courtID != "" {
		slots = lo.Filter(slots, func(ts types.Timeslot, _ int) bool { return ts.CourtID == courtID })
	}
	if len(slots) == 0 {
		h.reply(chatID, "No timeslots found.")
		return
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].CourtID != slots[j].CourtID {
			return slots[i].CourtID < slots[j].CourtID
		}
		return slots[i].StartTime < slots[j].StartTime
	})

	var b strings.Builder
	b.WriteString("🕘 Timeslots\n")
	current := ""
	for _, ts := range slots {
		if ts.CourtID != current {
			current = ts.CourtID
			name := ts.CourtName
			if name == "" {
				name = ts.CourtID
			}
			fmt.Fprintf(&b, "\n%s\n", name)
		}
		peak := ""
		if ts.Peak {
			peak = " · peak"
		}
		fmt.Fprintf(&b, "%s · %s%s · id %s\n", ts.Label(), ts.Price, peak, ts.ID)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) HandleTimeslotAdd(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 5, "/timeslot_add court_id;HH:MM;HH:MM;price;peak")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	ts, err := timeslotFromFields("", f[0], f[1], f[2], f[3], f[4], "yes")
	if err != nil {
		h.reply(chatID, "⚠️ "+err.Error())
		return
	}

	created, err := h.API.CreateTimeslot(ctx, ts)
	if err != nil {
		h.fail(ctx, chatID, "Adding timeslot", err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Timeslot %s added (id %s).", ts.Label(), created.ID))
}

// HandleTimeslotUpdate replaces every field of a timeslot.
func (h *Handler) HandleTimeslotUpdate(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	f, err := splitFields(msg.CommandArguments(), 7, "/timeslot_update id;court_id;HH:MM;HH:MM;price;peak;active")
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	if f[0] == "" {
		h.reply(chatID, "⚠️ Timeslot id is required.")
		return
	}
	ts, err := timeslotFromFields(f[0], f[1], f[2], f[3], f[4], f[5], f[6])
	if err != nil {
		h.reply(chatID, "⚠️ "+err.Error())
		return
	}

	if err := h.API.UpdateTimeslot(ctx, ts); err != nil {
		h.fail(ctx, chatID, "Updating timeslot", err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Timeslot %s updated.", ts.Label()))
}

// timeslotFromFields parses the text fields of /timeslot_add and /timeslot_update.
func timeslotFromFields(id, courtID, startText, endText, priceText, peakText, activeText string) (types.Timeslot, error) {
	if courtID == "" {
		return types.Timeslot{}, errors.New("Court id is required.")
	}
	start, err := parseClock(startText)
	if err != nil {
		return types.Timeslot{}, fmt.Errorf("Start: %w", err)
	}
	end, err := parseClock(endText)
	if err != nil {
		return types.Timeslot{}, fmt.Errorf("End: %w", err)
	}
	if end <= start {
		return types.Timeslot{}, errors.New("The end time must be after the start time.")
	}
	price, err := parseMoney(priceText)
	if err != nil {
		return types.Timeslot{}, fmt.Errorf("Price: %w", err)
	}
	peak, err := parseBool(peakText)
	if err != nil {
		return types.Timeslot{}, fmt.Errorf("Peak: %w", err)
	}
	active, err := parseBool(activeText)
	if err != nil {
		return types.Timeslot{}, fmt.Errorf("Active: %w", err)
	}
	return types.Timeslot{ID: id, CourtID: courtID, StartTime: start, EndTime: end, Price: price, Peak: peak, Active: active}, nil
}

func (h *Handler) HandleTimeslotDelete(ctx context.Context, msg *tgbotapi.Message) {
	h.deleteByID(ctx, msg, "/timeslot_del id", "Deleting timeslot", h.API.DeleteTimeslot)
}

// deleteByID runs an admin-only delete that takes a single id argument.
func (h *Handler) deleteByID(ctx context.Context, msg *tgbotapi.Message, usage, action string, del func(context.Context, string) error) {
	chatID := msg.Chat.ID
	ctx, _, ok := h.authorize(ctx, chatID, true)
	if !ok {
		return
	}

	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" || strings.ContainsAny(id, " ;") {
		h.reply(chatID, "usage: "+usage)
		return
	}
	if err := del(ctx, id); err != nil {
		h.fail(ctx, chatID, action, err)
		return
	}
	h.reply(chatID, "🗑 Deleted "+id+".")
}
