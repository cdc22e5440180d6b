// Package queue defines message payloads exchanged over the message broker
// and the consumer that journals staff notifications.
package queue

import (
	"time"

	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// Queue names. Both are durable.
const (
	EmailQueue = "homestay.email"
	StaffQueue = "homestay.staff"
)

// Staff event types.
const (
	EventBookingHeld       = "booking.held"
	EventBookingVerified   = "booking.verified"
	EventPaymentSubmitted  = "booking.payment_submitted"
	EventPaymentCompleted  = "booking.payment_completed"
	EventBookingCancelled  = "booking.cancelled"
	EventBookingCheckedIn  = "booking.checked_in"
	EventBookingCheckedOut = "booking.checked_out"
)

// VerificationCodeEvent asks the mail worker to deliver a one-time code to
// a guest. The code is in clear text and only ever travels over the email
// queue.
type VerificationCodeEvent struct {
	EventID     string    `json:"event_id"`
	BookingID   uint64    `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StaffEvent tells branch staff that a booking changed state. It contains
// enough information to log or display without querying the database.
type StaffEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	BookingID   uint64          `json:"booking_id"`
	BookingCode string          `json:"booking_code"`
	BranchID    uint64          `json:"branch_id"`
	Email       string          `json:"customer_email"`
	RoomIDs     []uint64        `json:"room_ids"`
	Total       pricing.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
