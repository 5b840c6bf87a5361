package resources

import "time"

type Customer struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Nationality string    `json:"nationality,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

type Vehicle struct {
	ID           string `json:"id,omitempty"`
	Registration string `json:"registration"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Seats        int    `json:"seats,omitempty"`
	Status       string `json:"status,omitempty"` // available, in-service, maintenance
}

type StaffMember struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"` // only sent when creating or resetting
}

type Supplier struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"` // hotel, transport, guide, ...
	Contact  string `json:"contact,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type Package struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Destination  string  `json:"destination,omitempty"`
	DurationDays int     `json:"durationDays,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

type Booking struct {
	ID          string    `json:"id,omitempty"`
	CustomerID  string    `json:"customerId"`
	PackageID   string    `json:"packageId,omitempty"`
	VehicleID   string    `json:"vehicleId,omitempty"`
	StartDate   time.Time `json:"startDate,omitzero"`
	EndDate     time.Time `json:"endDate,omitzero"`
	Status      string    `json:"status,omitempty"` // pending, confirmed, completed, cancelled
	TotalAmount float64   `json:"totalAmount,omitempty"`
}

type Payment struct {
	ID        string    `json:"id,omitempty"`
	BookingID string    `json:"bookingId"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method,omitempty"`
	Status    string    `json:"status,omitempty"` // pending, paid, refunded
	PaidAt    time.Time `json:"paidAt,omitzero"`
}

type Expense struct {
	ID          string    `json:"id,omitempty"`
	SupplierID  string    `json:"supplierId,omitempty"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	IncurredAt  time.Time `json:"incurredAt,omitzero"`
}

// ConfigItem is one entry of a reference list such as countries or
// payment methods.
type ConfigItem struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}
