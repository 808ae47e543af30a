package coupon

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"props-shop/internal/models"
)

var ErrNotFound = errors.New("coupon not found")

// Store is the persistence surface the validator and the capture path need.
type Store interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
}

// DB is the bun-backed coupon store. Codes are case-insensitive and stored
// uppercase; both operations normalize before querying.
type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := d.Bun.NewSelect().
		Model(&coupon).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage consumes one use. The max_uses guard is enforced in SQL so
// two captures racing on the last use cannot both succeed.
func (d *DB) IncrementUsage(ctx context.Context, code string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("used_count = used_count + 1").
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Where("max_uses IS NULL OR max_uses = 0 OR used_count < max_uses").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
