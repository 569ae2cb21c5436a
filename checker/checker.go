package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"court-desk/logging"
	"court-desk/types"
)

const nightInterval = 4 * time.Hour

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Source provides the figures a summary is computed from.
type Source interface {
	Bookings(ctx context.Context, filter types.BookingFilter) ([]types.Booking, error)
	Expenses(ctx context.Context) ([]types.Expense, error)
}

type Store interface {
	Subscribers(ctx context.Context) ([]int64, error)
	SaveLastSummary(ctx context.Context, chatID int64, summary any) error
	GetLastSummary(ctx context.Context, chatID int64) ([]byte, error)
}

// Summary is the day's figures pushed to dashboard subscribers.
type Summary struct {
	Date             string                      `json:"date"`
	Counts           map[types.BookingStatus]int `json:"counts"`
	BookedRevenue    types.Money                 `json:"bookedRevenue"`
	CollectedRevenue types.Money                 `json:"collectedRevenue"`
	Expenses         types.Money                 `json:"expenses"`
	Net              types.Money                 `json:"net"`
	DemoExpenses     bool                        `json:"demoExpenses"`
}

func (s Summary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Summary for %s\n\n", s.Date)
	for _, st := range types.BookingStatuses {
		fmt.Fprintf(&b, "%s: %d\n", st, s.Counts[st])
	}
	fmt.Fprintf(&b, "\nBooked: %s\n", s.BookedRevenue)
	fmt.Fprintf(&b, "Collected: %s\n", s.CollectedRevenue)
	fmt.Fprintf(&b, "Expenses: %s", s.Expenses)
	if s.DemoExpenses {
		b.WriteString(" (demo data)")
	}
	fmt.Fprintf(&b, "\nNet: %s", s.Net)
	return b.String()
}

type Checker struct {
	Bot      Sender
	Store    Store
	Source   Source
	Loc      *time.Location
	Interval time.Duration

	now func() time.Time
}

// New creates the dashboard refresher. interval is the daytime refresh period.
func New(bot Sender, store Store, source Source, loc *time.Location, interval time.Duration) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = 20 * time.Minute
	}
	return &Checker{
		Bot:      bot,
		Store:    store,
		Source:   source,
		Loc:      loc,
		Interval: interval,
		now:      time.Now,
	}
}

// Start warms the last-summary cache without pushing, then runs the loop until ctx ends.
func (c *Checker) Start(ctx context.Context) {
	logging.FromContext(ctx).Info("dashboard refresher started")
	c.initializeExistingSubscriptions(ctx)
	go c.adaptiveLoop(ctx)
}

func (c *Checker) initializeExistingSubscriptions(ctx context.Context) {
	log := logging.FromContext(ctx)

	subs, err := c.Store.Subscribers(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list dashboard subscribers")
		return
	}
	if len(subs) == 0 {
		return
	}

	summary, err := c.Compute(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to compute initial summary")
		return
	}
	for _, chatID := range subs {
		if err := c.Store.SaveLastSummary(ctx, chatID, summary); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Warn("failed to cache summary")
		}
	}
	log.WithField("subscribers", len(subs)).Info("dashboard cache initialized")
}

// nextInterval slows down between 01:00 and 08:00 local time.
func (c *Checker) nextInterval(now time.Time) time.Duration {
	hour := now.In(c.Loc).Hour()
	if hour >= 1 && hour < 8 {
		return nightInterval
	}
	return c.Interval
}

func (c *Checker) adaptiveLoop(ctx context.Context) {
	for {
		wait := c.nextInterval(c.now())
		logging.FromContext(ctx).WithField("next_in", wait.String()).Debug("dashboard refresh scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		c.checkAll(ctx)
	}
}

// checkAll pushes to every subscriber whose summary changed since the last push.
func (c *Checker) checkAll(ctx context.Context) {
	log := logging.FromContext(ctx)

	subs, err := c.Store.Subscribers(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list dashboard subscribers")
		return
	}
	if len(subs) == 0 {
		return
	}

	summary, err := c.Compute(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to compute summary")
		return
	}
	for _, chatID := range subs {
		c.push(ctx, chatID, summary, false)
	}
}

// RefreshNow recomputes the summary in the background, pushes it to chatID
// unconditionally and to other subscribers when it changed. chatID 0 forces nobody.
func (c *Checker) RefreshNow(ctx context.Context, chatID int64) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		summary, err := c.Compute(ctx)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("failed to compute summary")
			return
		}
		if chatID != 0 {
			c.push(ctx, chatID, summary, true)
		}

		subs, err := c.Store.Subscribers(ctx)
		if err != nil {
			return
		}
		for _, id := range subs {
			if id != chatID {
				c.push(ctx, id, summary, false)
			}
		}
	}()
}

// Compute builds today's summary. Cancelled bookings count but earn nothing.
func (c *Checker) Compute(ctx context.Context) (Summary, error) {
	today := c.now().In(c.Loc).Format("2006-01-02")

	bookings, err := c.Source.Bookings(ctx, types.BookingFilter{Date: today})
	if err != nil {
		return Summary{}, fmt.Errorf("loading bookings: %w", err)
	}
	expenses, err := c.Source.Expenses(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("loading expenses: %w", err)
	}

	s := Summary{Date: today, Counts: make(map[types.BookingStatus]int)}
	for _, b := range bookings {
		s.Counts[b.Status]++
		if b.Status == types.StatusCancelled {
			continue
		}
		s.BookedRevenue += b.TotalAmount
		s.CollectedRevenue += b.AmountPaid
	}
	for _, e := range expenses {
		if !strings.HasPrefix(e.Date, today) {
			continue
		}
		s.Expenses += e.Amount
		if e.Mock {
			s.DemoExpenses = true
		}
	}
	s.Net = s.CollectedRevenue - s.Expenses
	return s, nil
}

func (c *Checker) push(ctx context.Context, chatID int64, summary Summary, force bool) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"chat_id": chatID})

	if !force && !c.changed(ctx, chatID, summary) {
		return
	}

	if _, err := c.Bot.Send(tgbotapi.NewMessage(chatID, summary.Format())); err != nil {
		log.WithError(err).Warn("failed to push summary")
		return
	}
	if err := c.Store.SaveLastSummary(ctx, chatID, summary); err != nil {
		log.WithError(err).Warn("failed to cache summary")
	}
	log.Debug("summary pushed")
}

func (c *Checker) changed(ctx context.Context, chatID int64, summary Summary) bool {
	last, err := c.Store.GetLastSummary(ctx, chatID)
	if err != nil || last == nil {
		return true
	}
	current, err := json.Marshal(summary)
	if err != nil {
		return true
	}
	return !bytes.Equal(bytes.TrimSpace(last), current)
}
