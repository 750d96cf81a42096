package session

import (
	"time"

	"satstall/internal/models"
)

// Tracker owns the ordered invoice sequence for one checkout attempt. The
// sequence length and order are fixed at construction; only invoice status
// and the cursor move afterward. A Tracker belongs to exactly one checkout
// flow and is not safe for concurrent use.
type Tracker struct {
	invoices []models.Invoice
	index    int
}

func NewTracker(invoices []models.Invoice) *Tracker {
	owned := make([]models.Invoice, len(invoices))
	copy(owned, invoices)
	for i := range owned {
		if owned[i].Status == "" {
			owned[i].Status = models.InvoicePending
		}
	}
	return &Tracker{invoices: owned}
}

func (t *Tracker) Len() int {
	return len(t.invoices)
}

func (t *Tracker) Index() int {
	return t.index
}

// Current returns the invoice under the cursor, false for an empty session.
func (t *Tracker) Current() (models.Invoice, bool) {
	if len(t.invoices) == 0 {
		return models.Invoice{}, false
	}
	return t.invoices[t.index], true
}

// Advance moves the cursor forward one invoice, saturating at the end.
func (t *Tracker) Advance() {
	if t.index < len(t.invoices)-1 {
		t.index++
	}
}

// Retreat moves the cursor back one invoice, saturating at zero.
func (t *Tracker) Retreat() {
	if t.index > 0 {
		t.index--
	}
}

// MarkPaid transitions pending/processing to paid. Re-marking a paid invoice
// is a no-op, so a wallet callback and a manual confirmation can race safely.
// Returns false when the invoice is unknown.
func (t *Tracker) MarkPaid(invoiceID string) bool {
	inv := t.find(invoiceID)
	if inv == nil {
		return false
	}
	switch inv.Status {
	case models.InvoicePending, models.InvoiceProcessing, models.InvoicePaid:
		inv.Status = models.InvoicePaid
		return true
	}
	return false
}

// MarkProcessing transitions pending to processing only; any other starting
// state is left untouched.
func (t *Tracker) MarkProcessing(invoiceID string) bool {
	inv := t.find(invoiceID)
	if inv == nil || inv.Status != models.InvoicePending {
		return false
	}
	inv.Status = models.InvoiceProcessing
	return true
}

// MarkFailed records a terminal failure for an unpaid invoice.
func (t *Tracker) MarkFailed(invoiceID string) bool {
	inv := t.find(invoiceID)
	if inv == nil || inv.Status == models.InvoicePaid {
		return false
	}
	inv.Status = models.InvoiceFailed
	return true
}

// PayAll settles every still-pending invoice in one batch, modelling an
// out-of-band aggregate payment. Failed and expired invoices are untouched.
// Returns the number of invoices marked.
func (t *Tracker) PayAll() int {
	n := 0
	for i := range t.invoices {
		if t.invoices[i].Status == models.InvoicePending || t.invoices[i].Status == models.InvoiceProcessing {
			t.invoices[i].Status = models.InvoicePaid
			n++
		}
	}
	return n
}

// ExpireOverdue marks pending invoices whose expiry has passed.
func (t *Tracker) ExpireOverdue(now time.Time) int {
	n := 0
	for i := range t.invoices {
		inv := &t.invoices[i]
		if inv.Status == models.InvoicePending && !inv.ExpiresAt.IsZero() && inv.ExpiresAt.Before(now) {
			inv.Status = models.InvoiceExpired
			n++
		}
	}
	return n
}

// IsComplete is true iff every invoice in the session is paid.
func (t *Tracker) IsComplete() bool {
	if len(t.invoices) == 0 {
		return false
	}
	for _, inv := range t.invoices {
		if inv.Status != models.InvoicePaid {
			return false
		}
	}
	return true
}

// Invoices returns a copy of the session sequence in its fixed order.
func (t *Tracker) Invoices() []models.Invoice {
	out := make([]models.Invoice, len(t.invoices))
	copy(out, t.invoices)
	return out
}

func (t *Tracker) find(invoiceID string) *models.Invoice {
	for i := range t.invoices {
		if t.invoices[i].ID == invoiceID {
			return &t.invoices[i]
		}
	}
	return nil
}
