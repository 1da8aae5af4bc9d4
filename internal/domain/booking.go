package domain

import "time"

// BookingStatus tracks admin follow-up on a booking request.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingContacted BookingStatus = "contacted"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingContacted, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is the persisted outcome of a completed conversation.
type Booking struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"sessionId"`
	Fingerprint     string        `json:"fingerprint"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	HasBooking      bool          `json:"hasBooking"`
	Package         string        `json:"package"`
	PackageID       string        `json:"packageId"`
	SpecialRequests *string       `json:"specialRequests"`
	Status          BookingStatus `json:"status"`
	Value           *float64      `json:"value"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	DeletedAt       *time.Time    `json:"deletedAt,omitempty"`
}

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.SpecialRequests = cloneString(b.SpecialRequests)
	if b.Value != nil {
		v := *b.Value
		cp.Value = &v
	}
	if b.DeletedAt != nil {
		t := *b.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}
