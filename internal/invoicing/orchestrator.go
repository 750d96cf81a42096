package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"satstall/internal/models"
	"satstall/internal/revshare"

	"github.com/google/uuid"
)

// RecipientFailure records one revenue-share recipient whose invoice could
// not be generated. The checkout continues without them; the reason is kept
// for user display.
type RecipientFailure struct {
	RecipientPubkey string
	DisplayName     string
	Reason          string
}

// GroupInvoices is the orchestration result for one seller group: the seller
// invoice first, then revenue-share invoices in calculator order.
type GroupInvoices struct {
	SellerPubkey string
	Invoices     []models.Invoice
	Skipped      []RecipientFailure
}

// Orchestrator fans invoice generation out across a seller group's payees.
// With Strict set, a gateway miss for any payee is an error; otherwise the
// mock generator stands in so a checkout can be exercised end to end without
// a live gateway.
type Orchestrator struct {
	Gateway    Gateway
	Strict     bool
	InvoiceTTL time.Duration
	Now        func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// ForGroup generates the invoice sequence for one seller group and order.
// The seller's own invoice is generated first; a failure there aborts the
// whole group, since an order without its primary payee is meaningless.
// Recipient failures are isolated into Skipped.
func (o *Orchestrator) ForGroup(ctx context.Context, group models.SellerGroup, orderID string) (GroupInvoices, error) {
	out := GroupInvoices{SellerPubkey: group.SellerPubkey}

	shares, merchantSats, err := revshare.Split(group.TotalSats(), group.Recipients)
	if err != nil {
		return out, fmt.Errorf("revenue shares for seller %s: %w", group.SellerPubkey, err)
	}

	seller, err := o.fetchOne(ctx, group.SellerPubkey, "", merchantSats, orderID, models.RoleMerchant)
	if err != nil {
		return out, fmt.Errorf("seller invoice: %w", err)
	}
	out.Invoices = append(out.Invoices, seller)

	for _, share := range shares {
		inv, err := o.fetchOne(ctx, share.RecipientPubkey, share.DisplayName, share.AmountSats, orderID, models.RoleRevenueShare)
		if err != nil {
			out.Skipped = append(out.Skipped, RecipientFailure{
				RecipientPubkey: share.RecipientPubkey,
				DisplayName:     share.DisplayName,
				Reason:          err.Error(),
			})
			continue
		}
		out.Invoices = append(out.Invoices, inv)
	}
	return out, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, payee, payeeName string, amountSats int64, orderID string, role models.InvoiceRole) (models.Invoice, error) {
	id := uuid.NewString()
	description := "order " + orderID
	details, err := o.Gateway.FetchInvoice(ctx, payee, amountSats, description, id)
	if err != nil {
		// the mock fallback only covers "no payable address"; transport
		// failures keep their normal fatal/isolated handling even in
		// permissive mode
		if o.Strict || !errors.Is(err, ErrNoPayableAddress) {
			return models.Invoice{}, err
		}
		details = o.mockInvoice(payee, amountSats)
	}
	return models.Invoice{
		ID:             id,
		OrderID:        orderID,
		PayeePubkey:    payee,
		PayeeName:      payeeName,
		AmountSats:     amountSats,
		PaymentRequest: details.PaymentRequest,
		ExpiresAt:      details.ExpiresAt,
		Status:         models.InvoicePending,
		Role:           role,
	}, nil
}

// mockInvoice produces a clearly-marked placeholder request in permissive
// mode. It is payable by manual confirmation only.
func (o *Orchestrator) mockInvoice(payee string, amountSats int64) PaymentRequestDetails {
	ttl := o.InvoiceTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return PaymentRequestDetails{
		PaymentRequest: fmt.Sprintf("mock:%s:%d", payee, amountSats),
		ExpiresAt:      o.now().Add(ttl),
	}
}
