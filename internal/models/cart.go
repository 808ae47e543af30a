package models

// CartLine is a client-held cart entry. Everything in it is untrusted input:
// unit_price is advisory only and is always recomputed from the catalog
// before money moves.
type CartLine struct {
	SKU         string           `json:"sku"`
	ProductSlug string           `json:"product_slug"`
	Variant     string           `json:"variant,omitempty"`
	Color       string           `json:"color,omitempty"`
	Size        string           `json:"size,omitempty"`
	CustomTexts []string         `json:"custom_texts,omitempty"`
	Stripe      *CartStripe      `json:"stripe,omitempty"`
	Addons      []CartAddon      `json:"addons,omitempty"`
	UnitPrice   float64          `json:"unit_price"`
	Quantity    int              `json:"quantity"`
	Image       string           `json:"image,omitempty"`
}

type CartStripe struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type CartAddon struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ValidatedItem is a cart line after the pricing engine has recomputed its
// unit price against the live catalog.
type ValidatedItem struct {
	CartLine
	ProductName        string  `json:"product_name"`
	ValidatedUnitPrice float64 `json:"validated_unit_price"`
	PriceChanged       bool    `json:"price_changed"`
}

// CartValidationResult is the response of the pricing/validation engine.
// Valid is false iff any line drifted by more than the epsilon or referenced
// a product that no longer exists.
type CartValidationResult struct {
	Valid    bool            `json:"valid"`
	Items    []ValidatedItem `json:"items"`
	Subtotal float64         `json:"subtotal"`
	Errors   []string        `json:"errors"`
}
