package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
)

var (
	btnStockCategory = tele.Btn{Unique: "stk_cat"}
	btnStockToggle   = tele.Btn{Unique: "stk_item"}
	btnStockBack     = tele.Btn{Unique: "stk_back"}
)

// gridRows lays buttons out perRow to a row.
func gridRows(menu *tele.ReplyMarkup, btns []tele.Btn, perRow int) []tele.Row {
	var rows []tele.Row
	for start := 0; start < len(btns); start += perRow {
		end := start + perRow
		if end > len(btns) {
			end = len(btns)
		}
		rows = append(rows, menu.Row(btns[start:end]...))
	}
	return rows
}

func stockLabel(it *models.MenuItem) string {
	if it.InStock {
		return "✅ " + it.Name
	}
	return "⛔ " + it.Name
}

// categoryMarkup lists categories by position; names can exceed the callback data limit.
func (b *Bot) categoryMarkup(ctx context.Context) (*tele.ReplyMarkup, error) {
	cats, err := b.Services.Menu().Categories(ctx)
	if err != nil {
		return nil, err
	}
	menu := &tele.ReplyMarkup{}
	btns := make([]tele.Btn, len(cats))
	for i, cat := range cats {
		btns[i] = menu.Data(cat, btnStockCategory.Unique, strconv.Itoa(i))
	}
	menu.Inline(gridRows(menu, btns, 3)...)
	return menu, nil
}

func (b *Bot) handleStockStart(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	menu, err := b.categoryMarkup(ctx)
	if err != nil {
		b.Log.Error("bot: menu categories", logger.Error(err))
		return c.Send(messages["failed"])
	}
	return c.Send(messages["stock_pick_category"], menu, tele.ModeHTML)
}

func (b *Bot) handleStockBack(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	menu, err := b.categoryMarkup(ctx)
	if err != nil {
		return b.respondErr(c, err)
	}
	c.Respond()
	return c.Edit(messages["stock_pick_category"], menu, tele.ModeHTML)
}

func (b *Bot) handleStockCategory(c tele.Context) error {
	idx, err := strconv.Atoi(c.Callback().Data)
	if err != nil {
		return c.Respond()
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	cats, err := b.Services.Menu().Categories(ctx)
	if err != nil {
		return b.respondErr(c, err)
	}
	if idx < 0 || idx >= len(cats) {
		// The menu changed since the list was sent.
		return c.Respond(&tele.CallbackResponse{Text: messages["stock_stale"], ShowAlert: true})
	}
	c.Respond()
	return b.showCategory(ctx, c, cats[idx])
}

func (b *Bot) showCategory(ctx context.Context, c tele.Context, category string) error {
	items, err := b.Services.Menu().List(ctx, models.MenuFilter{Category: category})
	if err != nil {
		return b.respondErr(c, err)
	}
	menu := &tele.ReplyMarkup{}
	btns := make([]tele.Btn, 0, len(items)+1)
	for _, it := range items {
		btns = append(btns, menu.Data(stockLabel(it), btnStockToggle.Unique, it.ID))
	}
	rows := gridRows(menu, btns, 1)
	rows = append(rows, menu.Row(menu.Data("⬅️ Back", btnStockBack.Unique)))
	menu.Inline(rows...)
	return c.Edit(fmt.Sprintf(messages["stock_category"], html.EscapeString(category)), menu, tele.ModeHTML)
}

func (b *Bot) handleStockToggle(c tele.Context) error {
	id := c.Callback().Data
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	items, err := b.Services.Menu().List(ctx, models.MenuFilter{})
	if err != nil {
		return b.respondErr(c, err)
	}
	var item *models.MenuItem
	for _, it := range items {
		if it.ID == id {
			item = it
			break
		}
	}
	if item == nil {
		return c.Respond(&tele.CallbackResponse{Text: messages["stock_stale"], ShowAlert: true})
	}

	if err := b.Services.Menu().SetInStock(ctx, id, !item.InStock); err != nil {
		return b.respondErr(c, err)
	}
	b.Log.Info("bot: stock toggled",
		logger.String("item", id),
		logger.Bool("in_stock", !item.InStock),
		logger.String("by", c.Sender().Username),
	)
	c.Respond(&tele.CallbackResponse{Text: "OK"})
	return b.showCategory(ctx, c, item.Category)
}
