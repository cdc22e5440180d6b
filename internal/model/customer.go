package model

import "time"

// Customer is the guest a booking belongs to.  Customers are matched by
// normalized email and created on first booking.
type Customer struct {
	ID        uint64    `json:"id"`              // customers.id
	FullName  string    `json:"full_name"`       // customers.full_name
	Email     string    `json:"email"`           // customers.email (unique, lower-case)
	Phone     string    `json:"phone,omitempty"` // customers.phone
	CreatedAt time.Time `json:"created_at"`      // customers.created_at
}
