package model

import (
	"time"

	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// Revenue is written exactly once per finalized payment.
type Revenue struct {
	ID         uint64          `json:"id"`          // revenues.id
	BookingID  uint64          `json:"booking_id"`  // revenues.booking_id (unique)
	BranchID   uint64          `json:"branch_id"`   // revenues.branch_id
	Amount     pricing.Decimal `json:"amount"`      // revenues.amount
	Method     string          `json:"method"`      // revenues.method
	RecordedAt time.Time       `json:"recorded_at"` // revenues.recorded_at
}

// Invoice is a convenience record; its absence never fails a payment.
type Invoice struct {
	ID        uint64          `json:"id"`         // invoices.id
	BookingID uint64          `json:"booking_id"` // invoices.booking_id (unique)
	Number    string          `json:"invoice_no"` // invoices.invoice_no
	Amount    pricing.Decimal `json:"amount"`     // invoices.amount
	IssuedAt  time.Time       `json:"issued_at"`  // invoices.issued_at
}
