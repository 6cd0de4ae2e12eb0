package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/service"
)

const callTimeout = 10 * time.Second

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTicket renders one kitchen ticket as an HTML message.
func formatTicket(o *models.Order) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(messages["order_header"], html.EscapeString(o.TableID), shortID(o.ID), o.Status))
	for _, it := range o.Items {
		sb.WriteString(fmt.Sprintf("• %dx %s\n", it.Quantity, html.EscapeString(it.Name)))
	}
	if o.Instructions != "" {
		sb.WriteString(fmt.Sprintf("📝 <i>%s</i>\n", html.EscapeString(o.Instructions)))
	}
	sb.WriteString(fmt.Sprintf("💰 ₹%s · 🕒 %s", o.Total.StringFixed(2), o.CreatedAt.Format("15:04")))
	return sb.String()
}

func label(s models.OrderStatus) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func ticketMarkup(t service.Ticket) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("➡️ "+label(t.Next), btnAdvance.Unique, t.Order.ID, string(t.Order.Status)),
		menu.Data("❌ Cancel", btnCancel.Unique, t.Order.ID),
	))
	return menu
}

func (b *Bot) handleActiveOrders(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	board, err := b.Services.Lifecycle().KitchenBoard(ctx)
	if err != nil {
		b.Log.Error("bot: kitchen board", logger.Error(err))
		return c.Send(messages["failed"])
	}
	if len(board) == 0 {
		return c.Send(messages["no_orders"])
	}

	for _, table := range board {
		for _, t := range table.Tickets {
			if err := c.Send(formatTicket(t.Order), ticketMarkup(t), tele.ModeHTML); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bot) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	sb, err := b.Services.Lifecycle().StaffBoard(ctx)
	if err != nil {
		b.Log.Error("bot: staff board", logger.Error(err))
		return c.Send(messages["failed"])
	}
	return c.Send(fmt.Sprintf(messages["stats"], sb.TotalOrders, sb.ActiveOrders, sb.Revenue.StringFixed(2)))
}

// handleAdvance expects args: order id, status shown on the button.
func (b *Bot) handleAdvance(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return c.Respond()
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	next, err := b.Services.Lifecycle().Advance(ctx, args[0], models.OrderStatus(args[1]))
	if err != nil {
		return b.respondErr(c, err)
	}
	c.Respond(&tele.CallbackResponse{Text: "OK"})
	return c.Edit(fmt.Sprintf(messages["advanced"], shortID(args[0]), next))
}

// handleCancelAsk is the first step of the two-step cancellation.
func (b *Bot) handleCancelAsk(c tele.Context) error {
	id := c.Callback().Data
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	order, err := b.Services.Lifecycle().Get(ctx, id)
	if err != nil {
		return b.respondErr(c, err)
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("Yes, cancel", btnCancelOK.Unique, id),
		menu.Data("No, keep it", btnCancelNot.Unique, id),
	))
	c.Respond()
	return c.Edit(fmt.Sprintf(messages["confirm"], shortID(id), order.TableID), menu)
}

func (b *Bot) handleCancelConfirm(c tele.Context) error {
	id := c.Callback().Data
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := b.Services.Lifecycle().Cancel(ctx, id, true); err != nil {
		return b.respondErr(c, err)
	}
	c.Respond(&tele.CallbackResponse{Text: "OK"})
	return c.Edit(fmt.Sprintf(messages["cancelled"], shortID(id)))
}

func (b *Bot) handleCancelKeep(c tele.Context) error {
	c.Respond()
	return c.Edit(fmt.Sprintf(messages["kept"], shortID(c.Callback().Data)))
}

func (b *Bot) respondErr(c tele.Context, err error) error {
	text := messages["failed"]
	switch {
	case errors.Is(err, service.ErrStatusConflict):
		text = messages["conflict"]
	case errors.Is(err, service.ErrNoTransition), errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrMenuItemNotFound):
		text = err.Error()
	default:
		b.Log.Error("bot: action failed", logger.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}
