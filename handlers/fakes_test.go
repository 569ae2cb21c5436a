package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"court-desk/api"
	"court-desk/checker"
	"court-desk/session"
	"court-desk/types"
)

const (
	testChat = int64(42)
	testDate = "2026-10-18"
)

var (
	testNow = time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC)

	courtA   = types.Court{ID: "ca", Name: "Court A", Category: "Indoor", HourlyPrice: 5000, Active: true}
	courtB   = types.Court{ID: "cb", Name: "Court B", Category: "Outdoor", HourlyPrice: 4000, Active: true}
	courtOff = types.Court{ID: "cx", Name: "Court X", Category: "Outdoor", HourlyPrice: 4000}

	slotA8  = types.Timeslot{ID: "a8", CourtID: "ca", StartTime: "08:00", EndTime: "09:00", Price: 4000, Active: true}
	slotA9  = types.Timeslot{ID: "a9", CourtID: "ca", StartTime: "09:00", EndTime: "10:00", Price: 5000, Active: true}
	slotB18 = types.Timeslot{ID: "b18", CourtID: "cb", StartTime: "18:00", EndTime: "19:00", Price: 6000, Active: true}

	racket = types.Equipment{ID: "eq-racket", Name: "Racket", UnitPrice: 2000, Stock: 1, Active: true}
)

type sentMessage struct {
	ChatID int64
	Text   string
	Markup *tgbotapi.InlineKeyboardMarkup
	Edit   bool
}

type fakeBot struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	callbacks []string
	deleted   []int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++

	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		m := sentMessage{ChatID: v.ChatID, Text: v.Text}
		if kb, ok := v.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			m.Markup = &kb
		}
		f.sent = append(f.sent, m)
	case tgbotapi.EditMessageTextConfig:
		f.sent = append(f.sent, sentMessage{ChatID: v.ChatID, Text: v.Text, Markup: v.ReplyMarkup, Edit: true})
	}
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := c.(type) {
	case tgbotapi.CallbackConfig:
		f.callbacks = append(f.callbacks, v.Text)
	case tgbotapi.DeleteMessageConfig:
		f.deleted = append(f.deleted, v.MessageID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeBot) texts() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parts []string
	for _, m := range f.sent {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n---\n")
}

type fakeAPI struct {
	*api.BackendMock

	mu            sync.Mutex
	courts        []types.Court
	equipment     []types.Equipment
	bookings      []types.Booking
	bookingsErr   error
	filters       []types.BookingFilter
	expenses      []types.Expense
	createdCourts []types.Court
	createdSlots  []types.Timeslot
	createdExp    []types.Expense
	updatedSlots  []types.Timeslot
	updatedExp    []types.Expense
	updates       map[string]types.BookingUpdate
	walkInUpdates map[string]types.BookingUpdate
	deleted       []string

	// createGate, when set, holds CreateWalkInBooking until it is closed.
	createStarted chan struct{}
	createGate    chan struct{}
}

func (f *fakeAPI) Courts(ctx context.Context) ([]types.Court, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Court(nil), f.courts...), nil
}

func (f *fakeAPI) CreateCourt(ctx context.Context, court types.Court) (types.Court, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	court.ID = "c-new"
	f.createdCourts = append(f.createdCourts, court)
	return court, nil
}

func (f *fakeAPI) UpdateCourt(ctx context.Context, court types.Court) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCourts = append(f.createdCourts, court)
	return nil
}

func (f *fakeAPI) DeleteCourt(ctx context.Context, id string) error { return f.del("court:" + id) }

func (f *fakeAPI) Equipment(ctx context.Context) ([]types.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Equipment(nil), f.equipment...), nil
}

func (f *fakeAPI) CreateEquipment(ctx context.Context, item types.Equipment) (types.Equipment, error) {
	item.ID = "eq-new"
	return item, nil
}

func (f *fakeAPI) UpdateEquipment(ctx context.Context, item types.Equipment) error { return nil }

func (f *fakeAPI) DeleteEquipment(ctx context.Context, id string) error {
	return f.del("equipment:" + id)
}

func (f *fakeAPI) CreateTimeslot(ctx context.Context, ts types.Timeslot) (types.Timeslot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts.ID = "ts-new"
	f.createdSlots = append(f.createdSlots, ts)
	return ts, nil
}

func (f *fakeAPI) UpdateTimeslot(ctx context.Context, ts types.Timeslot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedSlots = append(f.updatedSlots, ts)
	return nil
}

func (f *fakeAPI) DeleteTimeslot(ctx context.Context, id string) error { return f.del("timeslot:" + id) }

func (f *fakeAPI) Bookings(ctx context.Context, filter types.BookingFilter) ([]types.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.bookingsErr != nil {
		return nil, f.bookingsErr
	}
	return append([]types.Booking(nil), f.bookings...), nil
}

func (f *fakeAPI) UpdateBooking(ctx context.Context, id string, update types.BookingUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]types.BookingUpdate)
	}
	f.updates[id] = update
	return nil
}

func (f *fakeAPI) UpdateWalkInBooking(ctx context.Context, id string, update types.BookingUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.walkInUpdates == nil {
		f.walkInUpdates = make(map[string]types.BookingUpdate)
	}
	f.walkInUpdates[id] = update
	return nil
}

func (f *fakeAPI) CreateWalkInBooking(ctx context.Context, req types.WalkInBookingRequest) (types.Booking, error) {
	if f.createGate != nil {
		close(f.createStarted)
		<-f.createGate
	}
	return f.BackendMock.CreateWalkInBooking(ctx, req)
}

func (f *fakeAPI) DeleteBooking(ctx context.Context, id string) error { return f.del("booking:" + id) }

func (f *fakeAPI) DeleteWalkInBooking(ctx context.Context, id string) error {
	return f.del("walkin:" + id)
}

func (f *fakeAPI) Expenses(ctx context.Context) ([]types.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Expense(nil), f.expenses...), nil
}

func (f *fakeAPI) CreateExpense(ctx context.Context, e types.Expense) (types.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = "ex-new"
	f.createdExp = append(f.createdExp, e)
	return e, nil
}

func (f *fakeAPI) UpdateExpense(ctx context.Context, e types.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedExp = append(f.updatedExp, e)
	return nil
}

func (f *fakeAPI) DeleteExpense(ctx context.Context, id string) error { return f.del("expense:" + id) }

func (f *fakeAPI) del(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeSessions struct {
	mu     sync.Mutex
	byChat map[int64]types.Session
}

func (f *fakeSessions) Current(ctx context.Context, chatID int64) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.byChat[chatID]
	if !ok {
		return types.Session{}, session.ErrNotLoggedIn
	}
	return sess, nil
}

func (f *fakeSessions) Login(ctx context.Context, chatID int64, username, password string) (types.Session, error) {
	sess := types.Session{ChatID: chatID, Token: "tok", User: types.User{ID: "u1", Name: username, Role: types.RoleAdmin}}
	f.set(sess)
	return sess, nil
}

func (f *fakeSessions) Logout(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byChat, chatID)
	return nil
}

func (f *fakeSessions) set(sess types.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byChat[sess.ChatID] = sess
}

type fakeSubs struct {
	mu   sync.Mutex
	subs map[int64]bool
}

func (f *fakeSubs) Subscribe(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[chatID] = true
	return nil
}

func (f *fakeSubs) Unsubscribe(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, chatID)
	return nil
}

func (f *fakeSubs) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[chatID], nil
}

type fakeDashboard struct {
	mu        sync.Mutex
	summary   checker.Summary
	refreshed []int64
}

func (f *fakeDashboard) Compute(ctx context.Context) (checker.Summary, error) {
	return f.summary, nil
}

func (f *fakeDashboard) RefreshNow(ctx context.Context, chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, chatID)
}

func (f *fakeDashboard) refreshes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.refreshed...)
}

type harness struct {
	h        *Handler
	bot      *fakeBot
	api      *fakeAPI
	sessions *fakeSessions
	subs     *fakeSubs
	dash     *fakeDashboard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hs := &harness{
		bot: &fakeBot{},
		api: &fakeAPI{
			BackendMock: &api.BackendMock{Slots: []types.Timeslot{slotA8, slotA9, slotB18}},
			courts:      []types.Court{courtB, courtOff, courtA},
			equipment:   []types.Equipment{racket},
		},
		sessions: &fakeSessions{byChat: make(map[int64]types.Session)},
		subs:     &fakeSubs{subs: make(map[int64]bool)},
		dash:     &fakeDashboard{summary: checker.Summary{Date: testDate, Counts: map[types.BookingStatus]int{}}},
	}
	hs.h = New(hs.bot, hs.api, hs.sessions, hs.subs, hs.dash, time.UTC)
	hs.h.now = func() time.Time { return testNow }
	return hs
}

func (hs *harness) login(role types.Role) {
	hs.sessions.set(types.Session{ChatID: testChat, Token: "tok", User: types.User{ID: "u1", Name: "Staff", Role: role}})
}

func command(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 100,
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func textMessage(s string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 101, Chat: &tgbotapi.Chat{ID: testChat}, Text: s}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: testChat}},
	}
}

func buttonTexts(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

func buttonData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}
