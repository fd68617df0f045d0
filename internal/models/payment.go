package models

import "time"

// PaymentOrder is the durable record of a gateway order created for a
// booking. At most one order per booking is in status "created".
type PaymentOrder struct {
	ID             int64     `json:"id"`
	BookingID      int64     `json:"booking_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentID      string    `json:"payment_id,omitempty"`
	AmountPaise    int64     `json:"amount_paise"`
	Currency       string    `json:"currency"`
	Receipt        string    `json:"receipt"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
