package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"satstall/internal/cart"
	"satstall/internal/events"
	"satstall/internal/invoicing"
	"satstall/internal/lifecycle"
	"satstall/internal/models"
	"satstall/internal/session"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrMissingShipping   = errors.New("line item has no shipping method")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotParticipant    = errors.New("actor is neither buyer nor seller of the order")
)

// ShippingPublishError marks the non-fatal half-published state: the status
// event landed but the shipping event did not. The order stays valid, only
// under-informative; callers may retry the shipping event alone.
type ShippingPublishError struct {
	OrderID string
	Err     error
}

func (e *ShippingPublishError) Error() string {
	return fmt.Sprintf("shipping event for order %s not published: %v", e.OrderID, e.Err)
}

func (e *ShippingPublishError) Unwrap() error { return e.Err }

// Input is one checkout attempt over a snapshot of the buyer's cart.
type Input struct {
	BuyerPubkey     string
	Items           []models.LineItem
	ShippingCosts   map[string]int64
	Recipients      map[string][]models.RevenueShareRecipient
	ShippingAddress string
	Notes           string
}

// SellerResult is the structured per-seller outcome. A failed seller group
// never aborts its siblings; its Err carries the recorded reason.
type SellerResult struct {
	SellerPubkey string
	OrderID      string
	Invoices     []models.Invoice
	Skipped      []invoicing.RecipientFailure
	Err          error
}

func (r SellerResult) Failed() bool { return r.Err != nil }

// Session is the checkout aggregate: cart split snapshot, per-seller
// results, and the payment tracker. It lives for one attempt and is owned
// by a single flow; nothing here is shared or global.
type Session struct {
	ID          string
	BuyerPubkey string
	Groups      []models.SellerGroup
	Results     []SellerResult
	Tracker     *session.Tracker
	CreatedAt   time.Time
}

// Succeeded counts seller groups whose order and invoices were created.
func (s *Session) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if !r.Failed() {
			n++
		}
	}
	return n
}

// Order reconstructs the order record for a successful seller result.
func (s *Session) Order(result SellerResult) (models.Order, bool) {
	if result.Failed() {
		return models.Order{}, false
	}
	for _, g := range s.Groups {
		if g.SellerPubkey == result.SellerPubkey {
			items := make([]models.OrderItem, 0, len(g.Items))
			for _, it := range g.Items {
				items = append(items, models.OrderItem{
					ProductRef: events.ProductRef(it.SellerPubkey, it.ProductID),
					Quantity:   it.Quantity,
				})
			}
			return models.Order{
				ID:           result.OrderID,
				SellerPubkey: g.SellerPubkey,
				BuyerPubkey:  s.BuyerPubkey,
				Items:        items,
				TotalSats:    g.TotalSats(),
				CreatedAt:    s.CreatedAt,
			}, true
		}
	}
	return models.Order{}, false
}

// Coordinator drives one checkout end to end: split the cart, create one
// order per seller, generate invoices, publish payment requests, then track
// payment progress until the session completes.
type Coordinator struct {
	Orchestrator   *invoicing.Orchestrator
	Publisher      events.Publisher
	Receipts       *Confirmations
	ReceiptTimeout time.Duration
	Now            func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// Begin validates the cart and runs the fan-out. Validation failures abort
// before anything is published; after that point failures are isolated per
// seller group and reported in the session results.
func (c *Coordinator) Begin(ctx context.Context, in Input) (*Session, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, it := range in.Items {
		if it.ShippingMethodID == "" {
			return nil, fmt.Errorf("%w: product %s", ErrMissingShipping, it.ProductID)
		}
	}

	now := c.now()
	sess := &Session{
		ID:          uuid.NewString(),
		BuyerPubkey: in.BuyerPubkey,
		Groups:      cart.Split(in.Items, in.ShippingCosts, in.Recipients),
		CreatedAt:   now,
	}

	var all []models.Invoice
	for _, group := range sess.Groups {
		res := c.checkoutGroup(ctx, in, group, now)
		sess.Results = append(sess.Results, res)
		if !res.Failed() {
			all = append(all, res.Invoices...)
		}
	}
	sess.Tracker = session.NewTracker(all)
	return sess, nil
}

// checkoutGroup runs one seller group: invoices first, then the order
// creation event, then one payment request per invoice. An order publish
// failure discards the already-generated invoices for that group.
func (c *Coordinator) checkoutGroup(ctx context.Context, in Input, group models.SellerGroup, now time.Time) SellerResult {
	res := SellerResult{SellerPubkey: group.SellerPubkey}
	orderID := uuid.NewString()

	gi, err := c.Orchestrator.ForGroup(ctx, group, orderID)
	if err != nil {
		res.Err = err
		return res
	}

	items := make([]models.OrderItem, 0, len(group.Items))
	for _, it := range group.Items {
		items = append(items, models.OrderItem{
			ProductRef: events.ProductRef(it.SellerPubkey, it.ProductID),
			Quantity:   it.Quantity,
		})
	}
	creation := events.OrderCreation{
		OrderID:         orderID,
		SellerPubkey:    group.SellerPubkey,
		BuyerPubkey:     in.BuyerPubkey,
		Items:           items,
		TotalSats:       group.TotalSats(),
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
		CreatedAt:       now,
	}
	if _, err := c.Publisher.Publish(ctx, creation.Event()); err != nil {
		res.Err = fmt.Errorf("order publish for seller %s: %w", group.SellerPubkey, err)
		return res
	}

	for _, inv := range gi.Invoices {
		req := events.PaymentRequest{
			BuyerPubkey: in.BuyerPubkey,
			PayeePubkey: inv.PayeePubkey,
			OrderID:     orderID,
			InvoiceID:   inv.ID,
			AmountSats:  inv.AmountSats,
			Methods:     []events.PaymentMethod{{Type: "lightning", Details: inv.PaymentRequest}},
			Expiration:  inv.ExpiresAt,
			Notes:       in.Notes,
			CreatedAt:   now,
		}
		if _, err := c.Publisher.Publish(ctx, req.Event()); err != nil {
			// the invoice itself is intact; the payee just has to learn of
			// it another way
			log.Printf("payment request publish failed order=%s invoice=%s: %v", orderID, inv.ID, err)
		}
	}

	res.OrderID = orderID
	res.Invoices = gi.Invoices
	res.Skipped = gi.Skipped
	return res
}

// AwaitReceipt waits for the asynchronous confirmation of one invoice with
// the configured bounded timeout, then marks it paid. A timeout leaves the
// invoice as-is; the caller may retry or let the payer skip ahead.
func (c *Coordinator) AwaitReceipt(ctx context.Context, sess *Session, invoiceID string) error {
	timeout := c.ReceiptTimeout
	if timeout <= 0 {
		timeout = 75 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := c.Receipts.Await(ctx, invoiceID); err != nil {
		return err
	}
	sess.Tracker.MarkPaid(invoiceID)
	return nil
}

// UpdateStatus publishes a status transition after checking the role gate
// against the derived state.
func (c *Coordinator) UpdateStatus(ctx context.Context, order models.Order, state lifecycle.State, actorPubkey string, to models.OrderStatus, reason string) (string, error) {
	role, ok := lifecycle.RoleOf(order, actorPubkey)
	if !ok {
		return "", ErrNotParticipant
	}
	if !lifecycle.CanTransition(state, role, to) {
		return "", fmt.Errorf("%w: %s -> %s as %s", ErrIllegalTransition, state.Status, to, role)
	}
	ev := events.StatusUpdate{
		OrderID:     order.ID,
		Status:      to,
		ActorPubkey: actorPubkey,
		Reason:      reason,
		CreatedAt:   c.now(),
	}
	return c.Publisher.Publish(ctx, ev.Event())
}

// MarkShipped publishes the shipped pair: a status event that explicitly
// keeps the order at processing, then the shipping event with the detail.
// If the second publish fails the order is left valid but without the
// shipped flag; that is reported as a ShippingPublishError, not rolled back.
// Returns the shipping event id on full success.
func (c *Coordinator) MarkShipped(ctx context.Context, order models.Order, state lifecycle.State, actorPubkey, tracking string) (string, error) {
	role, ok := lifecycle.RoleOf(order, actorPubkey)
	if !ok {
		return "", ErrNotParticipant
	}
	if !lifecycle.CanMarkShipped(state, role) {
		return "", fmt.Errorf("%w: mark shipped from %s as %s", ErrIllegalTransition, state.Status, role)
	}

	now := c.now()
	status := events.StatusUpdate{
		OrderID:     order.ID,
		Status:      models.OrderProcessing,
		ActorPubkey: actorPubkey,
		Tracking:    tracking,
		CreatedAt:   now,
	}
	if _, err := c.Publisher.Publish(ctx, status.Event()); err != nil {
		return "", fmt.Errorf("status publish for order %s: %w", order.ID, err)
	}

	shipping := events.ShippingUpdate{
		OrderID:     order.ID,
		Status:      models.ShippingShipped,
		ActorPubkey: actorPubkey,
		Tracking:    tracking,
		CreatedAt:   now,
	}
	id, err := c.Publisher.Publish(ctx, shipping.Event())
	if err != nil {
		return "", &ShippingPublishError{OrderID: order.ID, Err: err}
	}
	return id, nil
}
