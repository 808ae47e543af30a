package pricing

import (
	"fmt"

	"props-shop/internal/catalog"
	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/utils"
)

// Epsilon is the tolerated client/server price drift, in currency units.
// Anything beyond it marks the cart invalid and triggers the
// correct-and-inform response.
const Epsilon = 0.01

// Engine recomputes unit prices from the catalog. It never trusts the
// client-supplied price components; matching is by stable identifier only.
type Engine struct {
	catalog catalog.Store
	logger  *logger.Logger
}

func NewEngine(cat catalog.Store, log *logger.Logger) *Engine {
	return &Engine{catalog: cat, logger: log}
}

// Validate recomputes every line's unit price as
// basePrice + variant.price_mod + size.price_mod + stripe.price + sum(addon.price).
// A missing product is a hard error for the whole line; a missing modifier
// contributes zero. The result is valid iff no line drifted beyond Epsilon
// and every product resolved.
func (e *Engine) Validate(lines []models.CartLine) *models.CartValidationResult {
	result := &models.CartValidationResult{
		Valid:  true,
		Items:  make([]models.ValidatedItem, 0, len(lines)),
		Errors: []string{},
	}

	for _, line := range lines {
		product, ok := e.catalog.ProductBySlug(line.ProductSlug)
		if !ok {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %q no longer exists", line.ProductSlug))
			e.logger.Warn("PRICING", fmt.Sprintf("Dropped cart line %s: product %s not found", line.SKU, line.ProductSlug))
			continue
		}

		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}

		price := product.BasePrice

		if line.Variant != "" {
			if v := product.VariantByName(line.Variant); v != nil {
				price += v.PriceMod
			}
		}
		if line.Size != "" {
			if s := product.SizeBySKU(line.Size); s != nil {
				price += s.PriceMod
			}
		}
		if line.Stripe != nil {
			if st := product.StripeByID(line.Stripe.ID); st != nil {
				price += st.Price
			}
		}
		for _, addon := range line.Addons {
			if a := product.AddonByID(addon.ID); a != nil {
				price += a.Price
			}
		}

		price = utils.Round2(price)

		drift := price - line.UnitPrice
		if drift < 0 {
			drift = -drift
		}
		changed := drift > Epsilon
		if changed {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("price for %q changed: submitted %.2f, current %.2f", line.SKU, line.UnitPrice, price))
		}

		item := models.ValidatedItem{
			CartLine:           line,
			ProductName:        product.Name,
			ValidatedUnitPrice: price,
			PriceChanged:       changed,
		}
		item.Quantity = quantity
		// the authoritative price replaces the submitted one
		item.UnitPrice = price

		result.Items = append(result.Items, item)
		result.Subtotal += price * float64(quantity)
	}

	result.Subtotal = utils.Round2(result.Subtotal)
	return result
}
