package model

import (
	"time"

	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// Room statuses.  A room is "booked" while a guest is checked in.
const (
	RoomAvailable = "available"
	RoomBooked    = "booked"
)

// Branch is a physical homestay or hotel location.
type Branch struct {
	ID   uint64 `json:"id"`   // branches.id
	Code string `json:"code"` // branches.code
	Name string `json:"name"` // branches.name
}

// Room is a bookable unit.  LockedUntil marks a temporary hold placed by
// a booking in progress; Version increases on every lock or release and is
// the compare-and-swap token used to reject concurrent writers.
//
// Fields:
//
//	ID          – primary key identifier.
//	BranchID    – branch the room belongs to.
//	ClassID     – room class providing rate and capacity.
//	Number      – room number shown to guests and staff.
//	Status      – available or booked.
//	LockedUntil – hold deadline, nil when unlocked.
//	Version     – optimistic concurrency counter.
type Room struct {
	ID          uint64          `json:"id"`                     // rooms.id
	BranchID    uint64          `json:"branch_id"`              // rooms.branch_id
	ClassID     uint64          `json:"room_class_id"`          // rooms.room_class_id
	ClassName   string          `json:"room_class"`             // room_classes.name
	Number      string          `json:"number"`                 // rooms.number
	Status      string          `json:"status"`                 // rooms.status
	NightlyRate pricing.Decimal `json:"nightly_rate"`           // room_classes.nightly_rate
	Capacity    int             `json:"capacity"`               // room_classes.capacity
	LockedUntil *time.Time      `json:"locked_until,omitempty"` // rooms.locked_until (nullable)
	Version     uint64          `json:"-"`                      // rooms.version
}

// LockedAt reports whether another holder's lock is still live at now.
func (r Room) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}
