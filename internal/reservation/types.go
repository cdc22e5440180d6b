package reservation

import (
	"strings"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// Roles carried in the JWT role claim.
const (
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Actor is the authenticated identity performing an operation. The zero
// value is an anonymous guest.
type Actor struct {
	UserID uint64
	Role   string
	Email  string
}

// IsStaff reports whether the actor acts for the property.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff || a.Role == RoleAdmin }

// Owns reports whether the actor is the booking's customer by email.
func (a Actor) Owns(b *model.Booking) bool {
	return a.Email != "" && strings.EqualFold(strings.TrimSpace(a.Email), b.CustomerEmail)
}

// CustomerContact identifies the guest; the email is the customer key.
type CustomerContact struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// LineRequest is one room and stay. Prices are never accepted from clients.
type LineRequest struct {
	RoomID   uint64    `json:"room_id" validate:"required"`
	CheckIn  time.Time `json:"check_in" validate:"required"`
	CheckOut time.Time `json:"check_out" validate:"required,gtfield=CheckIn"`
	Adults   int       `json:"adults" validate:"min=1,max=20"`
	Children int       `json:"children" validate:"min=0,max=20"`
}

// CreateBookingRequest is the input of CreateBooking.
type CreateBookingRequest struct {
	BranchID      uint64          `json:"branch_id" validate:"required"`
	Customer      CustomerContact `json:"customer"`
	Lines         []LineRequest   `json:"lines" validate:"required,min=1,max=10,dive"`
	PromotionCode string          `json:"promotion_code" validate:"omitempty,max=64"`
}

// QuoteRequest prices lines without holding anything.
type QuoteRequest struct {
	Lines         []LineRequest `json:"lines" validate:"required,min=1,max=10,dive"`
	PromotionCode string        `json:"promotion_code" validate:"omitempty,max=64"`
}

// Quote is the priced result of a QuoteRequest.
type Quote struct {
	Lines         []pricing.Breakdown `json:"lines"`
	Total         pricing.Breakdown   `json:"total"`
	PromotionCode string              `json:"promotion_code,omitempty"`
}

// PaymentRequest is the input of FinalizePayment.
type PaymentRequest struct {
	Amount    pricing.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash card transfer ewallet"`
	Reference string          `json:"reference" validate:"max=128"`
}

// Receipt is returned by FinalizePayment. Invoice is nil when the invoice
// record could not be written.
type Receipt struct {
	Booking     *model.Booking `json:"booking"`
	Invoice     *model.Invoice `json:"invoice,omitempty"`
	AlreadyPaid bool           `json:"already_paid"`
}

// AvailabilityQuery is the input of ListAvailableRooms.
type AvailabilityQuery struct {
	BranchID    uint64
	CheckIn     time.Time
	CheckOut    time.Time
	MinCapacity int
}
