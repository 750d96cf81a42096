package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"satstall/internal/models"
)

// Event is the wire form carried by the relays: a kind number, a flat list
// of key/value tag tuples, and a free-form content body. Everything typed
// lives behind the record structs below; the tag tuples exist only here.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt time.Time  `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

const (
	KindOrderCreation  = 16010
	KindPaymentRequest = 16011
	KindStatusUpdate   = 16012
	KindShippingUpdate = 16013
	KindPaymentReceipt = 16014

	productKind = 30402
)

const (
	TypeOrderCreation  = "order-creation"
	TypePaymentRequest = "payment-request"
	TypeStatusUpdate   = "status-update"
	TypeShippingUpdate = "shipping-update"
	TypePaymentReceipt = "payment-receipt"
)

var ErrUnknownRecord = errors.New("unknown record type")

// ProductRef builds the stable product coordinate kind:sellerPubkey:productId.
func ProductRef(sellerPubkey, productID string) string {
	return fmt.Sprintf("%d:%s:%s", productKind, sellerPubkey, productID)
}

// ParseProductRef splits a product coordinate back into its parts.
func ParseProductRef(ref string) (sellerPubkey, productID string, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return "", "", fmt.Errorf("malformed product ref %q", ref)
	}
	return parts[1], parts[2], nil
}

type orderContent struct {
	ShippingAddress string `json:"shipping_address,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// OrderCreation announces one seller-scoped order derived from a cart split.
type OrderCreation struct {
	OrderID         string
	SellerPubkey    string
	BuyerPubkey     string
	Items           []models.OrderItem
	TotalSats       int64
	ShippingAddress string
	Notes           string
	CreatedAt       time.Time
}

func (r OrderCreation) Event() Event {
	tags := [][]string{
		{"type", TypeOrderCreation},
		{"order", r.OrderID},
		{"p", r.SellerPubkey},
		{"amount", strconv.FormatInt(r.TotalSats, 10)},
	}
	for _, it := range r.Items {
		tags = append(tags, []string{"item", it.ProductRef, strconv.FormatInt(it.Quantity, 10)})
	}
	body, _ := json.Marshal(orderContent{ShippingAddress: r.ShippingAddress, Notes: r.Notes})
	return Event{
		Pubkey:    r.BuyerPubkey,
		CreatedAt: r.CreatedAt,
		Kind:      KindOrderCreation,
		Tags:      tags,
		Content:   string(body),
	}
}

func ParseOrderCreation(ev Event) (OrderCreation, error) {
	if typeTag(ev) != TypeOrderCreation {
		return OrderCreation{}, ErrUnknownRecord
	}
	r := OrderCreation{
		OrderID:      tagValue(ev, "order"),
		SellerPubkey: tagValue(ev, "p"),
		BuyerPubkey:  ev.Pubkey,
		CreatedAt:    ev.CreatedAt,
	}
	if r.OrderID == "" {
		return OrderCreation{}, errors.New("order-creation without order tag")
	}
	r.TotalSats, _ = strconv.ParseInt(tagValue(ev, "amount"), 10, 64)
	for _, tag := range ev.Tags {
		if len(tag) >= 3 && tag[0] == "item" {
			qty, _ := strconv.ParseInt(tag[2], 10, 64)
			r.Items = append(r.Items, models.OrderItem{ProductRef: tag[1], Quantity: qty})
		}
	}
	var body orderContent
	if ev.Content != "" {
		if err := json.Unmarshal([]byte(ev.Content), &body); err != nil {
			return OrderCreation{}, fmt.Errorf("order-creation content: %w", err)
		}
	}
	r.ShippingAddress = body.ShippingAddress
	r.Notes = body.Notes
	return r, nil
}

// PaymentMethod is one way to settle a payment request.
type PaymentMethod struct {
	Type    string // "lightning" or "onchain"
	Details string
}

// PaymentRequest asks a payer to settle one invoice for one payee.
type PaymentRequest struct {
	BuyerPubkey string
	PayeePubkey string
	OrderID     string
	InvoiceID   string
	AmountSats  int64
	Methods     []PaymentMethod
	Expiration  time.Time
	Notes       string
	CreatedAt   time.Time
}

func (r PaymentRequest) Event() Event {
	tags := [][]string{
		{"type", TypePaymentRequest},
		{"order", r.OrderID},
		{"invoice", r.InvoiceID},
		{"p", r.PayeePubkey},
		{"amount", strconv.FormatInt(r.AmountSats, 10)},
	}
	if !r.Expiration.IsZero() {
		tags = append(tags, []string{"expiration", strconv.FormatInt(r.Expiration.Unix(), 10)})
	}
	for _, m := range r.Methods {
		tags = append(tags, []string{"payment", m.Type, m.Details})
	}
	return Event{
		Pubkey:    r.BuyerPubkey,
		CreatedAt: r.CreatedAt,
		Kind:      KindPaymentRequest,
		Tags:      tags,
		Content:   r.Notes,
	}
}

func ParsePaymentRequest(ev Event) (PaymentRequest, error) {
	if typeTag(ev) != TypePaymentRequest {
		return PaymentRequest{}, ErrUnknownRecord
	}
	r := PaymentRequest{
		BuyerPubkey: ev.Pubkey,
		PayeePubkey: tagValue(ev, "p"),
		OrderID:     tagValue(ev, "order"),
		InvoiceID:   tagValue(ev, "invoice"),
		Notes:       ev.Content,
		CreatedAt:   ev.CreatedAt,
	}
	r.AmountSats, _ = strconv.ParseInt(tagValue(ev, "amount"), 10, 64)
	if exp := tagValue(ev, "expiration"); exp != "" {
		if ts, err := strconv.ParseInt(exp, 10, 64); err == nil {
			r.Expiration = time.Unix(ts, 0).UTC()
		}
	}
	for _, tag := range ev.Tags {
		if len(tag) >= 3 && tag[0] == "payment" {
			r.Methods = append(r.Methods, PaymentMethod{Type: tag[1], Details: tag[2]})
		}
	}
	return r, nil
}

// StatusUpdate moves an order's primary status. The event never carries the
// previous status; consumers derive the current one by replay.
type StatusUpdate struct {
	OrderID     string
	Status      models.OrderStatus
	ActorPubkey string
	Reason      string
	Tracking    string
	CreatedAt   time.Time
}

func (r StatusUpdate) Event() Event {
	tags := [][]string{
		{"type", TypeStatusUpdate},
		{"order", r.OrderID},
		{"status", string(r.Status)},
	}
	if r.Tracking != "" {
		tags = append(tags, []string{"tracking", r.Tracking})
	}
	return Event{
		Pubkey:    r.ActorPubkey,
		CreatedAt: r.CreatedAt,
		Kind:      KindStatusUpdate,
		Tags:      tags,
		Content:   r.Reason,
	}
}

// ParseStatusUpdate decodes a status event straight into the model type the
// lifecycle machine folds over.
func ParseStatusUpdate(ev Event) (models.OrderStatusEvent, error) {
	if typeTag(ev) != TypeStatusUpdate {
		return models.OrderStatusEvent{}, ErrUnknownRecord
	}
	out := models.OrderStatusEvent{
		EventID:     ev.ID,
		OrderID:     tagValue(ev, "order"),
		Status:      models.OrderStatus(tagValue(ev, "status")),
		ActorPubkey: ev.Pubkey,
		Reason:      ev.Content,
		Tracking:    tagValue(ev, "tracking"),
		Timestamp:   ev.CreatedAt,
	}
	if out.OrderID == "" || out.Status == "" {
		return models.OrderStatusEvent{}, errors.New("status-update missing order or status tag")
	}
	return out, nil
}

// ShippingUpdate records shipment detail alongside, never instead of, the
// primary status stream.
type ShippingUpdate struct {
	OrderID     string
	Status      models.ShippingStatus
	ActorPubkey string
	Tracking    string
	Reason      string
	CreatedAt   time.Time
}

func (r ShippingUpdate) Event() Event {
	tags := [][]string{
		{"type", TypeShippingUpdate},
		{"order", r.OrderID},
		{"shipping", string(r.Status)},
	}
	if r.Tracking != "" {
		tags = append(tags, []string{"tracking", r.Tracking})
	}
	return Event{
		Pubkey:    r.ActorPubkey,
		CreatedAt: r.CreatedAt,
		Kind:      KindShippingUpdate,
		Tags:      tags,
		Content:   r.Reason,
	}
}

func ParseShippingUpdate(ev Event) (models.ShippingEvent, error) {
	if typeTag(ev) != TypeShippingUpdate {
		return models.ShippingEvent{}, ErrUnknownRecord
	}
	out := models.ShippingEvent{
		EventID:   ev.ID,
		OrderID:   tagValue(ev, "order"),
		Status:    models.ShippingStatus(tagValue(ev, "shipping")),
		Tracking:  tagValue(ev, "tracking"),
		Reason:    ev.Content,
		Timestamp: ev.CreatedAt,
	}
	if out.OrderID == "" || out.Status == "" {
		return models.ShippingEvent{}, errors.New("shipping-update missing order or shipping tag")
	}
	return out, nil
}

// PaymentReceipt is the asynchronous confirmation signal for one invoice,
// published by the payer's wallet or a settlement watcher.
type PaymentReceipt struct {
	InvoiceID   string
	OrderID     string
	PayerPubkey string
	AmountSats  int64
	Preimage    string
	CreatedAt   time.Time
}

func (r PaymentReceipt) Event() Event {
	tags := [][]string{
		{"type", TypePaymentReceipt},
		{"invoice", r.InvoiceID},
		{"order", r.OrderID},
		{"amount", strconv.FormatInt(r.AmountSats, 10)},
	}
	if r.Preimage != "" {
		tags = append(tags, []string{"preimage", r.Preimage})
	}
	return Event{
		Pubkey:    r.PayerPubkey,
		CreatedAt: r.CreatedAt,
		Kind:      KindPaymentReceipt,
		Tags:      tags,
	}
}

func ParsePaymentReceipt(ev Event) (PaymentReceipt, error) {
	if typeTag(ev) != TypePaymentReceipt {
		return PaymentReceipt{}, ErrUnknownRecord
	}
	r := PaymentReceipt{
		InvoiceID:   tagValue(ev, "invoice"),
		OrderID:     tagValue(ev, "order"),
		PayerPubkey: ev.Pubkey,
		Preimage:    tagValue(ev, "preimage"),
		CreatedAt:   ev.CreatedAt,
	}
	if r.InvoiceID == "" {
		return PaymentReceipt{}, errors.New("payment-receipt without invoice tag")
	}
	r.AmountSats, _ = strconv.ParseInt(tagValue(ev, "amount"), 10, 64)
	return r, nil
}

// Type returns the record discriminator of a wire event.
func Type(ev Event) string {
	return typeTag(ev)
}

func typeTag(ev Event) string {
	return tagValue(ev, "type")
}

func tagValue(ev Event, key string) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1]
		}
	}
	return ""
}
