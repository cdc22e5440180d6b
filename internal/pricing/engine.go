// Package pricing computes booking line prices. It performs no I/O: callers
// supply the room class rate, capacity, stay and an already-resolved
// promotion, and receive a breakdown with exact intermediate values and a
// single rounding step on the total.
package pricing

import (
	"errors"
	"time"
)

// ErrInvalidStay is returned when check-out is not after check-in.
var ErrInvalidStay = errors.New("pricing: check-out must be after check-in")

// Promotion kinds.
const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

// Promotion is a discount already validated as active by the caller.
type Promotion struct {
	Code  string
	Kind  string
	Value Decimal
}

// Line is the pricing input for one room over one stay.
type Line struct {
	NightlyRate Decimal
	Capacity    int
	CheckIn     time.Time
	CheckOut    time.Time
	Adults      int
	Children    int
}

// Breakdown is the priced result for one line, or the sum of several.
type Breakdown struct {
	Nights            int     `json:"nights"`
	BasePrice         Decimal `json:"base_price"`
	SeasonalSurcharge Decimal `json:"seasonal_surcharge"`
	GuestSurcharge    Decimal `json:"guest_surcharge"`
	Subtotal          Decimal `json:"subtotal"`
	VAT               Decimal `json:"vat_amount"`
	Discount          Decimal `json:"discount"`
	Total             Decimal `json:"total"`
}

// Add sums two breakdowns field by field. Totals are added as already
// rounded values.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Nights:            b.Nights + o.Nights,
		BasePrice:         b.BasePrice.Add(o.BasePrice),
		SeasonalSurcharge: b.SeasonalSurcharge.Add(o.SeasonalSurcharge),
		GuestSurcharge:    b.GuestSurcharge.Add(o.GuestSurcharge),
		Subtotal:          b.Subtotal.Add(o.Subtotal),
		VAT:               b.VAT.Add(o.VAT),
		Discount:          b.Discount.Add(o.Discount),
		Total:             b.Total.Add(o.Total),
	}
}

// Engine prices lines against a Policy.
type Engine struct {
	policy Policy
}

func NewEngine(p Policy) *Engine { return &Engine{policy: p} }

// Policy returns the table the engine prices with.
func (e *Engine) Policy() Policy { return e.policy }

// Nights counts started 24h periods between check-in and check-out, at least 1.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	n := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Quote prices one line. promo may be nil.
func (e *Engine) Quote(in Line, promo *Promotion) (Breakdown, error) {
	if !in.CheckOut.After(in.CheckIn) {
		return Breakdown{}, ErrInvalidStay
	}
	nights := Nights(in.CheckIn, in.CheckOut)
	base := in.NightlyRate.MulInt(int64(nights))
	seasonal := base.Mul(e.policy.SeasonalRate(in.CheckIn.Month()))

	extra := in.Adults + in.Children - in.Capacity
	guest := Zero
	if extra > 0 {
		guest = e.policy.ExtraGuestFee.MulInt(int64(extra))
	}

	subtotal := base.Add(seasonal).Add(guest)
	vat := subtotal.Mul(e.policy.VATRate)
	gross := subtotal.Add(vat)
	discount := Discount(promo, gross)

	return Breakdown{
		Nights:            nights,
		BasePrice:         base,
		SeasonalSurcharge: seasonal,
		GuestSurcharge:    guest,
		Subtotal:          subtotal,
		VAT:               vat,
		Discount:          discount,
		Total:             gross.Sub(discount).Round(),
	}, nil
}

// Discount resolves a promotion against a VAT-inclusive amount. The result
// never exceeds gross and is zero for nil or unknown kinds.
func Discount(promo *Promotion, gross Decimal) Decimal {
	if promo == nil || promo.Value.Sign() <= 0 {
		return Zero
	}
	var d Decimal
	switch promo.Kind {
	case KindPercent:
		d = gross.Mul(promo.Value).Mul(NewFromFrac(1, 100))
	case KindFixed:
		d = promo.Value
	default:
		return Zero
	}
	return d.Min(gross)
}
