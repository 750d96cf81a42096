package checkout

import (
	"context"
	"sync"

	"satstall/internal/events"
)

// Confirmations routes asynchronous payment receipts to checkouts waiting on
// them. Waits are cancellable through their context and leave nothing behind
// when cancelled; invoice status is untouched either way.
type Confirmations struct {
	mu      sync.Mutex
	waiters map[string][]chan events.PaymentReceipt
}

func NewConfirmations() *Confirmations {
	return &Confirmations{waiters: make(map[string][]chan events.PaymentReceipt)}
}

// Await blocks until a receipt for invoiceID arrives or ctx ends. Callers
// bound the wait with a deadline; a timeout is reported as ctx.Err(), never
// as an invoice failure.
func (c *Confirmations) Await(ctx context.Context, invoiceID string) (events.PaymentReceipt, error) {
	ch := make(chan events.PaymentReceipt, 1)

	c.mu.Lock()
	c.waiters[invoiceID] = append(c.waiters[invoiceID], ch)
	c.mu.Unlock()

	defer c.remove(invoiceID, ch)

	select {
	case rec := <-ch:
		return rec, nil
	case <-ctx.Done():
		return events.PaymentReceipt{}, ctx.Err()
	}
}

// Notify delivers a receipt to every waiter on its invoice.
func (c *Confirmations) Notify(rec events.PaymentReceipt) {
	c.mu.Lock()
	chans := c.waiters[rec.InvoiceID]
	delete(c.waiters, rec.InvoiceID)
	c.mu.Unlock()

	for _, ch := range chans {
		ch <- rec
	}
}

func (c *Confirmations) remove(invoiceID string, ch chan events.PaymentReceipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chans := c.waiters[invoiceID]
	for i, other := range chans {
		if other == ch {
			c.waiters[invoiceID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(c.waiters[invoiceID]) == 0 {
		delete(c.waiters, invoiceID)
	}
}
