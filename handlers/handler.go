package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"court-desk/api"
	"court-desk/booking"
	"court-desk/checker"
	"court-desk/logging"
	"court-desk/session"
	"court-desk/types"
)

// Bot is the part of tgbotapi.BotAPI the handlers use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// API is the part of the REST client the bot drives.
type API interface {
	booking.Loader
	booking.Backend

	Courts(ctx context.Context) ([]types.Court, error)
	CreateCourt(ctx context.Context, court types.Court) (types.Court, error)
	UpdateCourt(ctx context.Context, court types.Court) error
	DeleteCourt(ctx context.Context, id string) error

	Equipment(ctx context.Context) ([]types.Equipment, error)
	CreateEquipment(ctx context.Context, item types.Equipment) (types.Equipment, error)
	UpdateEquipment(ctx context.Context, item types.Equipment) error
	DeleteEquipment(ctx context.Context, id string) error

	CreateTimeslot(ctx context.Context, ts types.Timeslot) (types.Timeslot, error)
	UpdateTimeslot(ctx context.Context, ts types.Timeslot) error
	DeleteTimeslot(ctx context.Context, id string) error

	Bookings(ctx context.Context, filter types.BookingFilter) ([]types.Booking, error)
	UpdateBooking(ctx context.Context, id string, update types.BookingUpdate) error
	DeleteBooking(ctx context.Context, id string) error
	UpdateWalkInBooking(ctx context.Context, id string, update types.BookingUpdate) error
	DeleteWalkInBooking(ctx context.Context, id string) error

	Expenses(ctx context.Context) ([]types.Expense, error)
	CreateExpense(ctx context.Context, e types.Expense) (types.Expense, error)
	UpdateExpense(ctx context.Context, e types.Expense) error
	DeleteExpense(ctx context.Context, id string) error
}

type Sessions interface {
	Current(ctx context.Context, chatID int64) (types.Session, error)
	Login(ctx context.Context, chatID int64, username, password string) (types.Session, error)
	Logout(ctx context.Context, chatID int64) error
}

type Subscriptions interface {
	Subscribe(ctx context.Context, chatID int64) error
	Unsubscribe(ctx context.Context, chatID int64) error
	IsSubscribed(ctx context.Context, chatID int64) (bool, error)
}

type Dashboard interface {
	Compute(ctx context.Context) (checker.Summary, error)
	RefreshNow(ctx context.Context, chatID int64)
}

// Handler serves every command and callback. Wizards are kept per chat.
type Handler struct {
	Bot       Bot
	API       API
	Sessions  Sessions
	Subs      Subscriptions
	Dashboard Dashboard
	Loc       *time.Location

	submitter *booking.Submitter
	now       func() time.Time

	mu      sync.Mutex
	wizards map[int64]*chatWizard
}

func New(bot Bot, backend API, sessions Sessions, subs Subscriptions, dashboard Dashboard, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	h := &Handler{
		Bot:       bot,
		API:       backend,
		Sessions:  sessions,
		Subs:      subs,
		Dashboard: dashboard,
		Loc:       loc,
		now:       time.Now,
		wizards:   make(map[int64]*chatWizard),
	}
	h.submitter = booking.NewSubmitter(backend, h.localNow, h.onBookingCommitted)
	return h
}

func (h *Handler) localNow() time.Time {
	return h.now().In(h.Loc)
}

// onBookingCommitted refreshes the dashboard. The booking chat is forced only
// when it follows the dashboard itself.
func (h *Handler) onBookingCommitted(ctx context.Context, b types.Booking) {
	if h.Dashboard == nil {
		return
	}
	var chatID int64
	if sess, ok := session.FromContext(ctx); ok {
		if subscribed, err := h.Subs.IsSubscribed(ctx, sess.ChatID); err == nil && subscribed {
			chatID = sess.ChatID
		}
	}
	h.Dashboard.RefreshNow(ctx, chatID)
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logging.FromContext(context.Background()).WithError(err).WithField("chat_id", chatID).Warn("failed to send message")
	}
}

func (h *Handler) answer(cq *tgbotapi.CallbackQuery, text string) {
	_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, text))
}

func (h *Handler) fail(ctx context.Context, chatID int64, action string, err error) {
	logging.FromContext(ctx).WithError(err).WithField("action", action).Warn("command failed")
	h.reply(chatID, fmt.Sprintf("⚠️ %s failed: %s", action, userError(err)))
}

// userError turns an error into one short line for staff.
func userError(err error) string {
	var (
		httpErr  *api.HTTPError
		appErr   *api.AppError
		invalid  *booking.ValidationError
		conflict *booking.ConflictError
	)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		return "please /login first"
	case errors.Is(err, session.ErrForbidden):
		return "this command needs an admin account"
	case errors.Is(err, api.ErrUnreachable):
		return "the booking server is unreachable, try again in a moment"
	case errors.Is(err, api.ErrMalformedResponse):
		return "the booking server sent an unexpected response"
	case errors.As(err, &httpErr):
		if httpErr.Remark != "" {
			return fmt.Sprintf("server error %d %s: %s", httpErr.StatusCode, httpErr.Status, httpErr.Remark)
		}
		return fmt.Sprintf("server error %d %s", httpErr.StatusCode, httpErr.Status)
	case errors.As(err, &appErr):
		return appErr.Error()
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &conflict):
		return conflict.Error()
	}
	return err.Error()
}

// authorize loads the chat's session and puts it on ctx for outgoing requests.
func (h *Handler) authorize(ctx context.Context, chatID int64, adminOnly bool) (context.Context, types.Session, bool) {
	sess, err := h.Sessions.Current(ctx, chatID)
	if err != nil {
		if !errors.Is(err, session.ErrNotLoggedIn) {
			logging.FromContext(ctx).WithError(err).Warn("session lookup failed")
		}
		h.reply(chatID, "🔒 Please /login first.")
		return ctx, types.Session{}, false
	}
	if adminOnly {
		if err := session.RequireAdmin(sess); err != nil {
			h.reply(chatID, "⛔ "+userError(err)+".")
			return ctx, types.Session{}, false
		}
	}
	return session.ToContext(ctx, sess), sess, true
}

// HandleStart lists the commands.
func (h *Handler) HandleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := "👋 Court desk\n\n" +
		"/login <user> <password>, /logout, /whoami\n\n" +
		"Bookings:\n" +
		"/book - new walk-in booking\n" +
		"/cancel - discard the booking in progress\n" +
		"/bookings [YYYY-MM-DD] [status]\n" +
		"/booking_status <id> <status>\n" +
		"/booking_pay <id> <amount>\n" +
		"/walkin_status <id> <status>, /walkin_pay <id> <amount>\n\n" +
		"Admin:\n" +
		"/courts, /court_add, /court_update, /court_del\n" +
		"/equipment, /equipment_add, /equipment_update, /equipment_del\n" +
		"/timeslots [court_id], /timeslot_add, /timeslot_update, /timeslot_del\n" +
		"/booking_del <id>, /walkin_del <id>\n" +
		"/expenses, /expense_add, /expense_update, /expense_del\n" +
		"/summary, /dashboard"
	h.reply(msg.Chat.ID, text)
}

// HandleUnknown answers commands the bot does not know.
func (h *Handler) HandleUnknown(ctx context.Context, msg *tgbotapi.Message) {
	h.reply(msg.Chat.ID, "Unknown command. Try /start")
}
