package models

import "github.com/shopspring/decimal"

// Cart is the host's local basket. It never touches the order document.
type Cart struct {
	lines []LineItem
}

func (c *Cart) Add(item MenuItem) {
	for i := range c.lines {
		if c.lines[i].ItemID == item.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, LineItem{ItemID: item.ID, Name: item.Name, Price: item.Price, Quantity: 1})
}

// SetQuantity removes the line when quantity drops to zero or below.
func (c *Cart) SetQuantity(itemID string, quantity int) {
	for i := range c.lines {
		if c.lines[i].ItemID != itemID {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
		c.lines[i].Quantity = quantity
		return
	}
}

func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	return ComputeTotal(c.lines)
}

func (c *Cart) Clear() {
	c.lines = nil
}
