package model

import (
	"time"

	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// Booking statuses.
const (
	BookingHeld      = "HELD"
	BookingConfirmed = "CONFIRMED"
	BookingCompleted = "COMPLETED"
	BookingAborted   = "ABORTED"
)

// Payment statuses.
const (
	PaymentPending             = "pending"
	PaymentWaitingConfirmation = "waiting_confirmation"
	PaymentPaid                = "paid"
)

// Booking line statuses.
const (
	LineReserved   = "reserved"
	LinePaid       = "paid"
	LineCheckedIn  = "checked_in"
	LineCheckedOut = "checked_out"
	LineCancelled  = "cancelled"
)

// Booking is one guest's reservation across one or more rooms.  Price fields
// are the sums of the line breakdowns and are frozen once PaymentStatus is
// paid.
//
// Fields:
//
//	ID, Code         – primary key and sequential business identifier (BK000001).
//	BranchID         – branch every line belongs to.
//	StaffID          – staff member who created the booking, if any.
//	CustomerID       – owning guest.
//	Status           – HELD, CONFIRMED, COMPLETED or ABORTED.
//	PaymentStatus    – pending, waiting_confirmation or paid.
//	HoldExpiresAt    – deadline for verification before the sweeper aborts.
//	PaymentExpiresAt – deadline for payment once verified.
//	Version          – optimistic concurrency counter.
type Booking struct {
	ID                uint64           `json:"id"`                           // bookings.id
	Code              string           `json:"code"`                         // bookings.code
	BranchID          uint64           `json:"branch_id"`                    // bookings.branch_id
	StaffID           *uint64          `json:"staff_id,omitempty"`           // bookings.staff_id (nullable)
	CustomerID        uint64           `json:"customer_id"`                  // bookings.customer_id
	CustomerEmail     string           `json:"customer_email"`               // customers.email
	Status            string           `json:"status"`                       // bookings.status
	PaymentStatus     string           `json:"payment_status"`               // bookings.payment_status
	BasePrice         pricing.Decimal  `json:"base_price"`                   // bookings.base_price
	SeasonalSurcharge pricing.Decimal  `json:"seasonal_surcharge"`           // bookings.seasonal_surcharge
	GuestSurcharge    pricing.Decimal  `json:"guest_surcharge"`              // bookings.guest_surcharge
	VATAmount         pricing.Decimal  `json:"vat_amount"`                   // bookings.vat_amount
	Discount          pricing.Decimal  `json:"discount"`                     // bookings.discount
	TotalAmount       pricing.Decimal  `json:"total_amount"`                 // bookings.total_amount
	PromotionCode     *string          `json:"promotion_code,omitempty"`     // bookings.promotion_code
	HoldExpiresAt     time.Time        `json:"hold_expires_at"`              // bookings.hold_expires_at
	PaymentExpiresAt  *time.Time       `json:"payment_expires_at,omitempty"` // bookings.payment_expires_at
	CodeHash          *string          `json:"-"`                            // bookings.verification_code_hash
	CodeExpiresAt     *time.Time       `json:"-"`                            // bookings.verification_expires_at
	Verified          bool             `json:"verified"`                     // bookings.verified
	PaymentMethod     *string          `json:"payment_method,omitempty"`     // bookings.payment_method
	PaymentRef        *string          `json:"payment_ref,omitempty"`        // bookings.payment_ref
	PaidAmount        *pricing.Decimal `json:"paid_amount,omitempty"`        // bookings.paid_amount
	PaidAt            *time.Time       `json:"paid_at,omitempty"`            // bookings.paid_at
	Hidden            bool             `json:"-"`                            // bookings.hidden
	Version           uint64           `json:"version"`                      // bookings.version
	CreatedAt         time.Time        `json:"created_at"`                   // bookings.created_at
	UpdatedAt         time.Time        `json:"updated_at"`                   // bookings.updated_at
	Lines             []BookingLine    `json:"lines"`
}

// LockDeadline is the latest locked_until this booking may have written on
// its rooms.
func (b Booking) LockDeadline() time.Time {
	if b.PaymentExpiresAt != nil && b.PaymentExpiresAt.After(b.HoldExpiresAt) {
		return *b.PaymentExpiresAt
	}
	return b.HoldExpiresAt
}

// RoomIDs lists the rooms of all lines in order.
func (b Booking) RoomIDs() []uint64 {
	ids := make([]uint64, 0, len(b.Lines))
	for _, l := range b.Lines {
		ids = append(ids, l.RoomID)
	}
	return ids
}

// SetPrice copies a summed breakdown onto the booking.
func (b *Booking) SetPrice(p pricing.Breakdown) {
	b.BasePrice = p.BasePrice
	b.SeasonalSurcharge = p.SeasonalSurcharge
	b.GuestSurcharge = p.GuestSurcharge
	b.VATAmount = p.VAT
	b.Discount = p.Discount
	b.TotalAmount = p.Total
}

// BookingLine is one room's stay within a booking.  For a given room,
// non-cancelled lines never overlap in time.
type BookingLine struct {
	ID           uint64          `json:"id"`                       // booking_lines.id
	BookingID    uint64          `json:"booking_id"`               // booking_lines.booking_id
	RoomID       uint64          `json:"room_id"`                  // booking_lines.room_id
	CheckIn      time.Time       `json:"check_in"`                 // booking_lines.check_in
	CheckOut     time.Time       `json:"check_out"`                // booking_lines.check_out
	Adults       int             `json:"adults"`                   // booking_lines.adults
	Children     int             `json:"children"`                 // booking_lines.children
	UnitPrice    pricing.Decimal `json:"unit_price"`               // booking_lines.unit_price
	LineTotal    pricing.Decimal `json:"line_total"`               // booking_lines.line_total
	Status       string          `json:"status"`                   // booking_lines.status
	CheckedInAt  *time.Time      `json:"checked_in_at,omitempty"`  // booking_lines.checked_in_at
	CheckedOutAt *time.Time      `json:"checked_out_at,omitempty"` // booking_lines.checked_out_at
}
