package models

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type ShippingStatus string

const (
	ShippingShipped   ShippingStatus = "shipped"
	ShippingDelivered ShippingStatus = "delivered"
)

type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "pending"
	InvoiceProcessing InvoiceStatus = "processing"
	InvoicePaid       InvoiceStatus = "paid"
	InvoiceFailed     InvoiceStatus = "failed"
	InvoiceExpired    InvoiceStatus = "expired"
)

type InvoiceRole string

const (
	RoleMerchant     InvoiceRole = "merchant"
	RoleRevenueShare InvoiceRole = "revenue-share"
)

// LineItem is one cart row. Pubkeys are 64-char lowercase hex throughout;
// bech32 encoding happens only at the wire boundary.
type LineItem struct {
	ProductID        string
	SellerPubkey     string
	UnitAmountSats   int64
	Quantity         int64
	ShippingMethodID string
}

func (l LineItem) TotalSats() int64 {
	return l.UnitAmountSats * l.Quantity
}

// RevenueShareRecipient routes a percentage of a seller's order amount to a
// third party at checkout. Percentage may arrive as a whole percent ("10") or
// a fraction ("0.10"); values > 1 are treated as whole percents.
type RevenueShareRecipient struct {
	RecipientPubkey string
	DisplayName     string
	Percentage      string
}

// SellerGroup is the per-seller slice of a cart, recomputed each checkout
// attempt and never persisted.
type SellerGroup struct {
	SellerPubkey string
	Items        []LineItem
	SubtotalSats int64
	ShippingSats int64
	Recipients   []RevenueShareRecipient
}

func (g SellerGroup) TotalSats() int64 {
	return g.SubtotalSats + g.ShippingSats
}

// Invoice is immutable once generated except for Status.
type Invoice struct {
	ID             string
	OrderID        string
	PayeePubkey    string
	PayeeName      string
	AmountSats     int64
	PaymentRequest string
	ExpiresAt      time.Time
	Status         InvoiceStatus
	Role           InvoiceRole
}

type OrderItem struct {
	ProductRef string
	Quantity   int64
}

// Order is created once per seller group per checkout attempt. Its current
// state lives in status and shipping events, never in the order record.
type Order struct {
	ID              string
	SellerPubkey    string
	BuyerPubkey     string
	Items           []OrderItem
	TotalSats       int64
	ShippingAddress string
	CreatedAt       time.Time
}

type OrderStatusEvent struct {
	EventID     string
	OrderID     string
	Status      OrderStatus
	ActorPubkey string
	Reason      string
	Tracking    string
	Timestamp   time.Time
}

type ShippingEvent struct {
	EventID   string
	OrderID   string
	Status    ShippingStatus
	Tracking  string
	Reason    string
	Timestamp time.Time
}
