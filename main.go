package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"court-desk/api"
	"court-desk/checker"
	"court-desk/config"
	"court-desk/handlers"
	"court-desk/logging"
	"court-desk/ops"
	"court-desk/session"
	"court-desk/storage"
	"court-desk/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Init(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		logrus.WithError(err).Warn("failed to load timezone, using UTC")
	}
	logrus.WithFields(logrus.Fields{
		"timezone": loc.String(),
		"now":      time.Now().In(loc).Format("2006-01-02 15:04:05 MST"),
	}).Info("timezone set")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.ConfigureTraceProvider(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to flush traces")
		}
	}()

	store := storage.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		logrus.WithError(err).Fatal("redis connection failed")
	}

	client := api.NewClient(api.Config{
		BaseURL:    cfg.APIBaseURL,
		APIKey:     cfg.APIKey,
		AdminToken: cfg.AdminToken,
		Timeout:    cfg.APITimeout,
		RatePerSec: cfg.APIRatePerSec,
	}, store, session.AuthEditor)
	sessions := session.NewManager(store, client)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logrus.WithError(err).Fatal("failed to authorize bot")
	}
	bot.Debug = cfg.BotDebug
	logrus.WithField("account", bot.Self.UserName).Info("bot authorized")

	dashboard := checker.New(bot, store, client, loc, cfg.DashboardInterval)
	go dashboard.Start(ctx)

	go func() {
		if err := ops.NewServer(cfg.OpsAddr, store).Run(ctx); err != nil {
			logrus.WithError(err).Error("ops server stopped")
			stop()
		}
	}()

	handler := handlers.New(bot, client, sessions, store, dashboard, loc)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	logrus.Info("bot is running")

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			logrus.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go handleUpdate(ctx, handler, update)
		}
	}
}

// handleUpdate routes one update with a request-scoped logger.
func handleUpdate(ctx context.Context, h *handlers.Handler, update tgbotapi.Update) {
	chat := update.FromChat()
	if chat == nil {
		return
	}

	correlationID := uuid.NewString()
	ctx = logging.ContextWithCorrelationID(ctx, correlationID)
	ctx = logging.ToContext(ctx, logrus.WithFields(logrus.Fields{
		"chat_id":        chat.ID,
		"correlation_id": correlationID,
	}))

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).WithField("panic", r).Error("update handler panicked")
		}
	}()

	if update.Message != nil {
		handleMessage(ctx, h, update.Message)
	} else if update.CallbackQuery != nil {
		handleCallback(ctx, h, update.CallbackQuery)
	}
}

func handleMessage(ctx context.Context, h *handlers.Handler, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		h.HandleText(ctx, msg)
		return
	}

	logging.FromContext(ctx).WithField("command", msg.Command()).Debug("command received")

	switch msg.Command() {
	case "start", "help":
		h.HandleStart(ctx, msg)

	// session
	case "login":
		h.HandleLogin(ctx, msg)
	case "logout":
		h.HandleLogout(ctx, msg)
	case "whoami":
		h.HandleWhoAmI(ctx, msg)

	// walk-in booking wizard
	case "book":
		h.HandleBook(ctx, msg)
	case "cancel":
		h.HandleCancel(ctx, msg)

	// bookings
	case "bookings":
		h.HandleBookings(ctx, msg)
	case "booking_status":
		h.HandleBookingStatus(ctx, msg)
	case "booking_pay":
		h.HandleBookingPay(ctx, msg)
	case "walkin_status":
		h.HandleWalkInStatus(ctx, msg)
	case "walkin_pay":
		h.HandleWalkInPay(ctx, msg)
	case "booking_del":
		h.HandleBookingDelete(ctx, msg)
	case "walkin_del":
		h.HandleWalkInDelete(ctx, msg)

	// catalog
	case "courts":
		h.HandleCourts(ctx, msg)
	case "court_add":
		h.HandleCourtAdd(ctx, msg)
	case "court_update":
		h.HandleCourtUpdate(ctx, msg)
	case "court_del":
		h.HandleCourtDelete(ctx, msg)
	case "equipment":
		h.HandleEquipmentList(ctx, msg)
	case "equipment_add":
		h.HandleEquipmentAdd(ctx, msg)
	case "equipment_update":
		h.HandleEquipmentUpdate(ctx, msg)
	case "equipment_del":
		h.HandleEquipmentDelete(ctx, msg)
	case "timeslots":
		h.HandleTimeslots(ctx, msg)
	case "timeslot_add":
		h.HandleTimeslotAdd(ctx, msg)
	case "timeslot_update":
		h.HandleTimeslotUpdate(ctx, msg)
	case "timeslot_del":
		h.HandleTimeslotDelete(ctx, msg)

	// money
	case "expenses":
		h.HandleExpenses(ctx, msg)
	case "expense_add":
		h.HandleExpenseAdd(ctx, msg)
	case "expense_update":
		h.HandleExpenseUpdate(ctx, msg)
	case "expense_del":
		h.HandleExpenseDelete(ctx, msg)
	case "summary":
		h.HandleSummary(ctx, msg)
	case "dashboard":
		h.HandleDashboard(ctx, msg)

	default:
		h.HandleUnknown(ctx, msg)
	}
}

func handleCallback(ctx context.Context, h *handlers.Handler, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}

	data := cq.Data

	switch {
	case strings.HasPrefix(data, "date:"):
		h.HandleDate(ctx, cq, strings.TrimPrefix(data, "date:"))

	// Courts and slots go by index to stay under the callback_data limit.
	case strings.HasPrefix(data, "wcourt:"):
		h.HandleCourtToggle(ctx, cq, strings.TrimPrefix(data, "wcourt:"))
	case strings.HasPrefix(data, "wslot:"):
		h.HandleSlotToggle(ctx, cq, strings.TrimPrefix(data, "wslot:"))
	case data == "courts_done":
		h.HandleCourtsDone(ctx, cq)

	case strings.HasPrefix(data, "eqinc:"):
		h.HandleEquipmentChange(ctx, cq, strings.TrimPrefix(data, "eqinc:"), 1)
	case strings.HasPrefix(data, "eqdec:"):
		h.HandleEquipmentChange(ctx, cq, strings.TrimPrefix(data, "eqdec:"), -1)
	case data == "equip_done":
		h.HandleEquipmentDone(ctx, cq)

	case strings.HasPrefix(data, "pay:"):
		h.HandlePayment(ctx, cq, strings.TrimPrefix(data, "pay:"))
	case strings.HasPrefix(data, "edit:"):
		h.HandleEdit(ctx, cq, strings.TrimPrefix(data, "edit:"))
	case data == "confirm":
		h.HandleConfirm(ctx, cq)

	case data == "wback":
		h.HandleBack(ctx, cq)
	case data == "wcancel":
		h.HandleWizardCancel(ctx, cq)
	case data == "noop":
		h.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))

	default:
		h.Bot.Request(tgbotapi.NewCallback(cq.ID, "Unknown action"))
	}
}
