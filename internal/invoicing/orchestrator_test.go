package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"satstall/internal/models"
	"satstall/internal/revshare"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sellerA   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	recipient = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

// fakeGateway resolves invoices in memory and can be told to fail per payee.
type fakeGateway struct {
	failing map[string]error
	calls   []string
}

func (g *fakeGateway) FetchInvoice(ctx context.Context, payee string, amountSats int64, description, idemKey string) (PaymentRequestDetails, error) {
	g.calls = append(g.calls, payee)
	if err, ok := g.failing[payee]; ok {
		return PaymentRequestDetails{}, err
	}
	return PaymentRequestDetails{
		PaymentRequest: fmt.Sprintf("lnbc%d:%s", amountSats, payee[:8]),
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}, nil
}

func groupWithRecipient() models.SellerGroup {
	return models.SellerGroup{
		SellerPubkey: sellerA,
		SubtotalSats: 9500,
		ShippingSats: 500,
		Recipients: []models.RevenueShareRecipient{
			{RecipientPubkey: recipient, DisplayName: "podcast", Percentage: "10"},
		},
	}
}

func TestForGroupOrderingAndAmounts(t *testing.T) {
	gw := &fakeGateway{}
	o := &Orchestrator{Gateway: gw, Strict: true}

	got, err := o.ForGroup(context.Background(), groupWithRecipient(), "order-1")
	require.NoError(t, err)
	require.Len(t, got.Invoices, 2)
	assert.Empty(t, got.Skipped)

	assert.Equal(t, models.RoleMerchant, got.Invoices[0].Role)
	assert.Equal(t, sellerA, got.Invoices[0].PayeePubkey)
	assert.Equal(t, int64(9000), got.Invoices[0].AmountSats)

	assert.Equal(t, models.RoleRevenueShare, got.Invoices[1].Role)
	assert.Equal(t, recipient, got.Invoices[1].PayeePubkey)
	assert.Equal(t, int64(1000), got.Invoices[1].AmountSats)

	for _, inv := range got.Invoices {
		assert.Equal(t, models.InvoicePending, inv.Status)
		assert.Equal(t, "order-1", inv.OrderID)
		assert.NotEmpty(t, inv.ID)
		assert.NotEmpty(t, inv.PaymentRequest)
	}
}

func TestForGroupSellerFailureIsFatal(t *testing.T) {
	gw := &fakeGateway{failing: map[string]error{sellerA: ErrNoPayableAddress}}
	o := &Orchestrator{Gateway: gw, Strict: true}

	_, err := o.ForGroup(context.Background(), groupWithRecipient(), "order-1")
	require.ErrorIs(t, err, ErrNoPayableAddress)
	// the recipient is never attempted once the seller invoice fails
	assert.Equal(t, []string{sellerA}, gw.calls)
}

func TestForGroupRecipientFailureIsolated(t *testing.T) {
	gw := &fakeGateway{failing: map[string]error{recipient: ErrNoPayableAddress}}
	o := &Orchestrator{Gateway: gw, Strict: true}

	got, err := o.ForGroup(context.Background(), groupWithRecipient(), "order-1")
	require.NoError(t, err)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, models.RoleMerchant, got.Invoices[0].Role)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, recipient, got.Skipped[0].RecipientPubkey)
	assert.Contains(t, got.Skipped[0].Reason, "no payable address")
}

func TestForGroupPermissiveFallsBackToMock(t *testing.T) {
	gw := &fakeGateway{failing: map[string]error{sellerA: ErrNoPayableAddress}}
	o := &Orchestrator{Gateway: gw, Strict: false}

	got, err := o.ForGroup(context.Background(), groupWithRecipient(), "order-1")
	require.NoError(t, err)
	require.Len(t, got.Invoices, 2)
	assert.True(t, strings.HasPrefix(got.Invoices[0].PaymentRequest, "mock:"))
	assert.False(t, got.Invoices[0].ExpiresAt.IsZero())
}

func TestForGroupPermissiveStillPropagatesTransportErrors(t *testing.T) {
	gw := &fakeGateway{failing: map[string]error{
		sellerA: fmt.Errorf("%w: connection refused", ErrGatewayUnavailable),
	}}
	o := &Orchestrator{Gateway: gw, Strict: false}

	_, err := o.ForGroup(context.Background(), groupWithRecipient(), "order-1")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestForGroupInconsistentSharesRejected(t *testing.T) {
	group := groupWithRecipient()
	group.Recipients = []models.RevenueShareRecipient{
		{RecipientPubkey: recipient, Percentage: "80"},
		{RecipientPubkey: sellerA, Percentage: "70"},
	}
	o := &Orchestrator{Gateway: &fakeGateway{}, Strict: true}

	_, err := o.ForGroup(context.Background(), group, "order-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, revshare.ErrInconsistentShares))
}

func TestForGroupNoRecipients(t *testing.T) {
	gw := &fakeGateway{}
	o := &Orchestrator{Gateway: gw, Strict: true}
	group := models.SellerGroup{SellerPubkey: sellerA, SubtotalSats: 5000}

	got, err := o.ForGroup(context.Background(), group, "order-2")
	require.NoError(t, err)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, int64(5000), got.Invoices[0].AmountSats)
}
