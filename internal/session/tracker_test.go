package session

import (
	"testing"
	"time"

	"satstall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvoices() []models.Invoice {
	return []models.Invoice{
		{ID: "inv-1", AmountSats: 9000, Role: models.RoleMerchant},
		{ID: "inv-2", AmountSats: 1000, Role: models.RoleRevenueShare},
		{ID: "inv-3", AmountSats: 5000, Role: models.RoleMerchant},
	}
}

func TestNewTrackerDefaultsPending(t *testing.T) {
	tr := NewTracker(testInvoices())
	for _, inv := range tr.Invoices() {
		assert.Equal(t, models.InvoicePending, inv.Status)
	}
}

func TestNavigationSaturates(t *testing.T) {
	tr := NewTracker(testInvoices())
	assert.Equal(t, 0, tr.Index())

	tr.Retreat()
	assert.Equal(t, 0, tr.Index())

	tr.Advance()
	tr.Advance()
	assert.Equal(t, 2, tr.Index())

	tr.Advance() // already at the last invoice
	assert.Equal(t, 2, tr.Index())

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, "inv-3", cur.ID)
}

func TestEmptySession(t *testing.T) {
	tr := NewTracker(nil)
	_, ok := tr.Current()
	assert.False(t, ok)
	assert.False(t, tr.IsComplete())
	tr.Advance()
	assert.Equal(t, 0, tr.Index())
}

func TestMarkPaidIdempotent(t *testing.T) {
	tr := NewTracker(testInvoices())
	assert.True(t, tr.MarkPaid("inv-1"))
	assert.True(t, tr.MarkPaid("inv-1"))
	assert.Equal(t, models.InvoicePaid, tr.Invoices()[0].Status)
}

func TestMarkPaidUnknownInvoice(t *testing.T) {
	tr := NewTracker(testInvoices())
	assert.False(t, tr.MarkPaid("nope"))
}

func TestMarkProcessingOnlyFromPending(t *testing.T) {
	tr := NewTracker(testInvoices())
	assert.True(t, tr.MarkProcessing("inv-1"))
	assert.False(t, tr.MarkProcessing("inv-1")) // already processing
	assert.Equal(t, models.InvoiceProcessing, tr.Invoices()[0].Status)

	require.True(t, tr.MarkPaid("inv-2"))
	assert.False(t, tr.MarkProcessing("inv-2"))
	assert.Equal(t, models.InvoicePaid, tr.Invoices()[1].Status)
}

func TestMarkProcessingThenPaid(t *testing.T) {
	tr := NewTracker(testInvoices())
	require.True(t, tr.MarkProcessing("inv-1"))
	assert.True(t, tr.MarkPaid("inv-1"))
	assert.Equal(t, models.InvoicePaid, tr.Invoices()[0].Status)
}

func TestPayAllSkipsFailedAndExpired(t *testing.T) {
	invoices := testInvoices()
	invoices = append(invoices,
		models.Invoice{ID: "inv-4", Status: models.InvoiceFailed},
		models.Invoice{ID: "inv-5", Status: models.InvoiceExpired},
	)
	tr := NewTracker(invoices)

	n := tr.PayAll()
	assert.Equal(t, 3, n)

	got := tr.Invoices()
	assert.Equal(t, models.InvoicePaid, got[0].Status)
	assert.Equal(t, models.InvoicePaid, got[1].Status)
	assert.Equal(t, models.InvoicePaid, got[2].Status)
	assert.Equal(t, models.InvoiceFailed, got[3].Status)
	assert.Equal(t, models.InvoiceExpired, got[4].Status)

	assert.False(t, tr.IsComplete()) // failed and expired invoices remain
}

func TestIsComplete(t *testing.T) {
	tr := NewTracker(testInvoices())
	assert.False(t, tr.IsComplete())

	tr.MarkPaid("inv-1")
	tr.MarkPaid("inv-2")
	assert.False(t, tr.IsComplete())

	tr.MarkPaid("inv-3")
	assert.True(t, tr.IsComplete())
}

func TestExpireOverdue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	invoices := []models.Invoice{
		{ID: "inv-1", ExpiresAt: now.Add(-time.Minute)},
		{ID: "inv-2", ExpiresAt: now.Add(time.Hour)},
		{ID: "inv-3"}, // no expiry
	}
	tr := NewTracker(invoices)
	require.True(t, tr.MarkPaid("inv-2"))

	n := tr.ExpireOverdue(now)
	assert.Equal(t, 1, n)
	got := tr.Invoices()
	assert.Equal(t, models.InvoiceExpired, got[0].Status)
	assert.Equal(t, models.InvoicePaid, got[1].Status)
	assert.Equal(t, models.InvoicePending, got[2].Status)
}
