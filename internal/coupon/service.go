package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/utils"
)

// Service validates coupon codes against a subtotal. Validation is
// side-effect-free: a code can be tried any number of times without
// consuming uses. Usage is incremented only after a successful capture.
type Service struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log, now: time.Now}
}

// Validate runs the checks in order, short-circuiting on the first failure:
// existence/active, validity window start, validity window end, usage cap,
// minimum order. Failures come back as a valid:false result, not an error;
// errors are reserved for the store misbehaving.
func (s *Service) Validate(ctx context.Context, code string, subtotal float64) (*models.CouponValidation, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return &models.CouponValidation{Valid: false, Error: "coupon code is required"}, nil
	}

	coupon, err := s.store.GetByCode(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return &models.CouponValidation{Valid: false, Error: "invalid coupon code"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon %s: %w", normalized, err)
	}

	if !coupon.IsActive {
		return &models.CouponValidation{Valid: false, Error: "invalid coupon code"}, nil
	}

	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return &models.CouponValidation{Valid: false, Error: "coupon is not active yet"}, nil
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return &models.CouponValidation{Valid: false, Error: "coupon has expired"}, nil
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return &models.CouponValidation{Valid: false, Error: "coupon usage limit reached"}, nil
	}
	if subtotal < coupon.MinOrder {
		return &models.CouponValidation{
			Valid: false,
			Error: fmt.Sprintf("minimum order of %.2f not met", coupon.MinOrder),
		}, nil
	}

	discount := ComputeDiscount(coupon, subtotal)
	s.logger.Info("COUPON", fmt.Sprintf("Validated %s: discount %.2f on subtotal %.2f", coupon.Code, discount, subtotal))

	return &models.CouponValidation{
		Valid:    true,
		Discount: discount,
		Type:     coupon.Type,
		Value:    coupon.Value,
		Code:     coupon.Code,
	}, nil
}

// ComputeDiscount applies the coupon's type to the subtotal: percentage is
// rounded half-up to two decimals, fixed is clamped to the subtotal so the
// discount never exceeds what it discounts.
func ComputeDiscount(coupon *models.Coupon, subtotal float64) float64 {
	switch coupon.Type {
	case models.CouponPercentage:
		return utils.Round2(subtotal * coupon.Value / 100)
	case models.CouponFixed:
		if coupon.Value > subtotal {
			return utils.Round2(subtotal)
		}
		return utils.Round2(coupon.Value)
	}
	return 0
}

// Consume increments the usage counter after a successful capture.
func (s *Service) Consume(ctx context.Context, code string) error {
	return s.store.IncrementUsage(ctx, code)
}
