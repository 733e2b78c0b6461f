package order

import "time"

type Status string

// An order moves pending→completed, pending→payment_failed,
// payment_failed→completed (a later attempt succeeded) or completed→refunded.
const (
	Pending       Status = "pending"
	Completed     Status = "completed"
	PaymentFailed Status = "payment_failed"
	Refunded      Status = "refunded"
)

type ItemType string

const (
	Course         ItemType = "course"
	DigitalProduct ItemType = "digital_product"
	Event          ItemType = "event"
)

type Order struct {
	ID         string    `json:"id" db:"order_id"`
	UserID     string    `json:"userId" db:"user_id"`
	ProviderID string    `json:"providerId" db:"provider_id"`
	PaymentRef string    `json:"paymentRef" db:"payment_ref"`
	Email      string    `json:"email" db:"email"`
	Total      int       `json:"total" db:"total"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// StatusUp moves an order to Status, but only while it is in one of From.
type StatusUp struct {
	ID         string
	Status     Status
	From       []Status
	PaymentRef string
	UpdatedAt  time.Time
}

type Item struct {
	OrderID   string    `json:"orderId" db:"order_id"`
	Type      ItemType  `json:"type" db:"item_type"`
	ItemID    string    `json:"itemId" db:"item_id"`
	Price     int       `json:"price" db:"price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
