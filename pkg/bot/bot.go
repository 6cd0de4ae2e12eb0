package bot

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/service"
)

// Bot is the Telegram console for kitchen and floor staff. It only reads the
// boards and issues the same transitions the HTTP staff endpoints do.
type Bot struct {
	Bot      *tele.Bot
	Log      logger.ILogger
	Services service.IServiceManager
	allowed  map[string]bool
}

var messages = map[string]string{
	"welcome":      "👋 Staff console. Use the buttons below.",
	"no_entry":     "🚫 This bot is for restaurant staff only.",
	"no_orders":    "📭 No active orders right now.",
	"btn_active":   "📦 Active orders",
	"btn_stats":    "📊 Stats",
	"btn_stock":    "🥘 Stock",
	"confirm":      "⚠️ Cancel order %s for table %s? This cannot be undone.",
	"cancelled":    "❌ Order %s cancelled.",
	"kept":         "↩️ Order %s kept.",
	"advanced":     "✅ Order %s is now %s.",
	"conflict":     "Someone already updated this order. Refresh the list.",
	"failed":       "Something went wrong, please try again.",
	"stats":        "📊 STATISTICS\n\nTotal orders: %d\nActive orders: %d\nRevenue: ₹%s",
	"order_header": "🧾 Table %s · #%s\nStatus: %s\n",

	"stock_pick_category": "🥘 <b>Pick a category</b>",
	"stock_category":      "🥘 <b>%s</b>\nTap a dish to switch it in or out of stock.",
	"stock_stale":         "The menu changed, open Stock again.",
}

var (
	btnAdvance   = tele.Btn{Unique: "adv"}
	btnCancel    = tele.Btn{Unique: "cxl"}
	btnCancelOK  = tele.Btn{Unique: "cxl_ok"}
	btnCancelNot = tele.Btn{Unique: "cxl_no"}
)

func New(cfg config.Config, services service.IServiceManager, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.StaffBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error("staff bot handler failed", logger.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		Bot:      b,
		Log:      log.With(logger.String("component", "staff_bot")),
		Services: services,
		allowed:  allowList(cfg.StaffBotUsername),
	}
	bot.registerHandlers()
	return bot, nil
}

func allowList(usernames []string) map[string]bool {
	out := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		u = strings.TrimPrefix(strings.TrimSpace(u), "@")
		if u != "" {
			out[strings.ToLower(u)] = true
		}
	}
	return out
}

func (b *Bot) isStaff(username string) bool {
	return b.allowed[strings.ToLower(username)]
}

func (b *Bot) Start() {
	b.Log.Info("🤖 staff bot started")
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

func (b *Bot) registerHandlers() {
	staff := b.Bot.Group()
	staff.Use(b.onlyStaff)

	staff.Handle("/start", b.handleStart)
	staff.Handle(messages["btn_active"], b.handleActiveOrders)
	staff.Handle(messages["btn_stats"], b.handleStats)
	staff.Handle(messages["btn_stock"], b.handleStockStart)

	staff.Handle(&btnAdvance, b.handleAdvance)
	staff.Handle(&btnCancel, b.handleCancelAsk)
	staff.Handle(&btnCancelOK, b.handleCancelConfirm)
	staff.Handle(&btnCancelNot, b.handleCancelKeep)

	staff.Handle(&btnStockCategory, b.handleStockCategory)
	staff.Handle(&btnStockToggle, b.handleStockToggle)
	staff.Handle(&btnStockBack, b.handleStockBack)
}

func (b *Bot) onlyStaff(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil || !b.isStaff(c.Sender().Username) {
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: messages["no_entry"], ShowAlert: true})
			}
			return c.Send(messages["no_entry"])
		}
		return next(c)
	}
}

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(messages["btn_active"]), menu.Text(messages["btn_stats"])),
		menu.Row(menu.Text(messages["btn_stock"])),
	)
	return c.Send(messages["welcome"], menu)
}
