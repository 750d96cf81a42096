package watcher

import (
	"context"
	"log"
	"time"

	"satstall/internal/checkout"
	"satstall/internal/events"
	"satstall/internal/models"
	"satstall/internal/relay"
	"satstall/internal/store"
)

// Watcher keeps the local cache in sync with the relay event stream and
// delivers payment receipts to waiting checkouts. It never derives or writes
// order status; it only appends what it sees.
type Watcher struct {
	Store         *store.Store
	Receipts      *checkout.Confirmations
	RelayEndpoint string
	Interval      time.Duration
	Backfill      time.Duration
}

func (w *Watcher) Run(ctx context.Context) {
	go w.runWS(ctx)

	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Store.MarkExpiredInvoices(ctx, time.Now().UTC()); err != nil {
			log.Printf("expire sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) runWS(ctx context.Context) {
	if w.RelayEndpoint == "" {
		log.Printf("relay watch disabled: endpoint is empty")
		return
	}

	kinds := []int{
		events.KindOrderCreation,
		events.KindStatusUpdate,
		events.KindShippingUpdate,
		events.KindPaymentReceipt,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client := relay.NewClient(w.RelayEndpoint)
		if err := client.Connect(ctx); err != nil {
			log.Printf("relay connect failed: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}
		log.Printf("relay connected %s", w.RelayEndpoint)

		since := time.Time{}
		if w.Backfill > 0 {
			since = time.Now().UTC().Add(-w.Backfill)
		}
		if err := client.Subscribe(ctx, "satstall-watch", kinds, since); err != nil {
			log.Printf("relay subscribe failed: %v", err)
			client.Close()
			time.Sleep(3 * time.Second)
			continue
		}

		for {
			ev, ok, err := client.Read(ctx)
			if err != nil {
				log.Printf("relay read failed: %v", err)
				client.Close()
				break
			}
			if !ok {
				continue
			}
			if err := w.handle(ctx, ev); err != nil {
				log.Printf("handle event %s failed: %v", ev.ID, err)
			}
		}

		time.Sleep(2 * time.Second)
	}
}

func (w *Watcher) handle(ctx context.Context, ev events.Event) error {
	switch events.Type(ev) {
	case events.TypeOrderCreation:
		rec, err := events.ParseOrderCreation(ev)
		if err != nil {
			return err
		}
		order := models.Order{
			ID:              rec.OrderID,
			SellerPubkey:    rec.SellerPubkey,
			BuyerPubkey:     rec.BuyerPubkey,
			Items:           rec.Items,
			TotalSats:       rec.TotalSats,
			ShippingAddress: rec.ShippingAddress,
			CreatedAt:       rec.CreatedAt,
		}
		return w.Store.InsertOrder(ctx, &order)

	case events.TypeStatusUpdate:
		rec, err := events.ParseStatusUpdate(ev)
		if err != nil {
			return err
		}
		return w.Store.InsertStatusEvent(ctx, rec)

	case events.TypeShippingUpdate:
		rec, err := events.ParseShippingUpdate(ev)
		if err != nil {
			return err
		}
		return w.Store.InsertShippingEvent(ctx, rec)

	case events.TypePaymentReceipt:
		rec, err := events.ParsePaymentReceipt(ev)
		if err != nil {
			return err
		}
		updated, err := w.Store.UpdateInvoiceStatus(ctx, rec.InvoiceID, models.InvoicePaid)
		if err != nil {
			return err
		}
		if updated > 0 {
			log.Printf("invoice %s paid (order=%s amount=%d)", rec.InvoiceID, rec.OrderID, rec.AmountSats)
		}
		if w.Receipts != nil {
			w.Receipts.Notify(rec)
		}
		return nil
	}
	return nil
}
