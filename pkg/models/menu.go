package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BadgeType string

const (
	BadgeBestseller  BadgeType = "bestseller"
	BadgeChefSpecial BadgeType = "chef-special"
	BadgeNone        BadgeType = "none"
)

type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image" validate:"omitempty,url"`
	IsVeg       bool            `json:"isVeg"`
	Category    string          `json:"category" validate:"required,max=60"`
	Badge       BadgeType       `json:"badge,omitempty" validate:"omitempty,oneof=bestseller chef-special none"`
	InStock     bool            `json:"inStock"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type MenuFilter struct {
	Category string
	VegOnly  bool
	Search   string
}

type Settings struct {
	TotalTables int       `json:"totalTables" validate:"gte=1,lte=500"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
