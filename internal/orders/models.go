package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/session"
)

type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentPayPal         PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentCashOnDelivery, PaymentPayPal:
		return true
	}
	return false
}

// Item is a product snapshot taken at checkout; later catalog edits do not
// reach it.
type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

type Order struct {
	ID                string          `json:"id"`
	ExternalID        string          `json:"external_id,omitempty"`
	UserID            string          `json:"user_id"`
	Items             []Item          `json:"items"`
	Status            Status          `json:"status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddress   session.Address `json:"shipping_address"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
}

func (o Order) clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	if o.EstimatedDelivery != nil {
		t := *o.EstimatedDelivery
		o.EstimatedDelivery = &t
	}
	return o
}

// Checkout is what the buyer submits with the cart. ExternalID is an
// optional client idempotency key.
type Checkout struct {
	ShippingAddress session.Address `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"required,oneof=credit_card cash_on_delivery paypal"`
	ExternalID      string          `json:"external_id,omitempty" validate:"omitempty,max=64"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalOrders       int             `json:"total_orders"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	PendingDeliveries int             `json:"pending_deliveries"`
	ByStatus          map[Status]int  `json:"by_status"`
}
