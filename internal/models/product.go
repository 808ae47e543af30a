package models

// Product is the read-only catalog entry for a prop, keyed by slug.
// The catalog is immutable per deploy and is the source of truth for pricing;
// client-submitted prices are never trusted past validation.
type Product struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	BasePrice float64   `json:"basePrice"`
	Variants  []Variant `json:"variants,omitempty"`
	Sizes     []Size    `json:"sizes,omitempty"`
	Stripes   []Stripe  `json:"stripes,omitempty"`
	Addons    []Addon   `json:"addons,omitempty"`
	Image     string    `json:"image,omitempty"`
}

type Variant struct {
	Name     string  `json:"name"`
	PriceMod float64 `json:"price_mod"`
}

type Size struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	PriceMod float64 `json:"price_mod"`
}

// Stripe is a decorative knit stripe option (not the payment processor).
type Stripe struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Addon struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// VariantByName returns the variant matching name, or nil.
func (p *Product) VariantByName(name string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i]
		}
	}
	return nil
}

// SizeBySKU returns the size whose SKU matches, or nil.
func (p *Product) SizeBySKU(sku string) *Size {
	for i := range p.Sizes {
		if p.Sizes[i].SKU == sku {
			return &p.Sizes[i]
		}
	}
	return nil
}

// StripeByID returns the stripe option matching id, or nil.
func (p *Product) StripeByID(id string) *Stripe {
	for i := range p.Stripes {
		if p.Stripes[i].ID == id {
			return &p.Stripes[i]
		}
	}
	return nil
}

// AddonByID returns the addon matching id, or nil.
func (p *Product) AddonByID(id string) *Addon {
	for i := range p.Addons {
		if p.Addons[i].ID == id {
			return &p.Addons[i]
		}
	}
	return nil
}
