package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Coupon discount types.
const (
	CouponFixed      = "fixed"
	CouponPercentage = "percentage"
)

// Coupon codes are case-insensitive and stored uppercase.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	Code      string     `bun:"code,pk" json:"code"`
	Type      string     `bun:"type,notnull" json:"type"`
	Value     float64    `bun:"value,notnull" json:"value"`
	MinOrder  float64    `bun:"min_order,notnull" json:"min_order"`
	MaxUses   int        `bun:"max_uses,nullzero" json:"max_uses,omitempty"`
	UsedCount int        `bun:"used_count,notnull,default:0" json:"used_count"`
	ValidFrom *time.Time `bun:"valid_from,nullzero" json:"valid_from,omitempty"`
	ValidTo   *time.Time `bun:"valid_to,nullzero" json:"valid_to,omitempty"`
	IsActive  bool       `bun:"is_active,notnull" json:"is_active"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// CouponValidation is the response of the coupon validator. Validation is
// side-effect-free; usage is consumed only after a successful capture.
type CouponValidation struct {
	Valid    bool    `json:"valid"`
	Discount float64 `json:"discount"`
	Type     string  `json:"type,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Code     string  `json:"code,omitempty"`
	Error    string  `json:"error,omitempty"`
}
