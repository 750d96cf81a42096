package store

import (
	"context"
	"database/sql"
	"time"

	"satstall/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a local, append-only cache of what this client has observed on
// the relays plus its own invoice journal. Derived order state is never
// written here; it is recomputed from the cached events on read.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, seller_pubkey, buyer_pubkey, total_sats,
			shipping_address, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (order_id) DO NOTHING
	`,
		order.ID,
		order.SellerPubkey,
		order.BuyerPubkey,
		order.TotalSats,
		order.ShippingAddress,
		order.CreatedAt,
	)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT order_id, seller_pubkey, buyer_pubkey, total_sats,
			shipping_address, created_at
		FROM orders WHERE order_id=$1
	`, orderID)

	var order models.Order
	var addr sql.NullString
	err := row.Scan(
		&order.ID,
		&order.SellerPubkey,
		&order.BuyerPubkey,
		&order.TotalSats,
		&addr,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if addr.Valid {
		order.ShippingAddress = addr.String
	}
	return &order, nil
}

// InsertStatusEvent caches one observed status event. Replayed duplicates
// are dropped on the event id.
func (s *Store) InsertStatusEvent(ctx context.Context, ev models.OrderStatusEvent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO order_events (
			event_id, order_id, record_type, status,
			actor_pubkey, tracking, reason, created_at
		) VALUES ($1,$2,'status',$3,$4,$5,$6,$7)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.EventID, ev.OrderID, string(ev.Status), ev.ActorPubkey, ev.Tracking, ev.Reason, ev.Timestamp)
	return err
}

func (s *Store) InsertShippingEvent(ctx context.Context, ev models.ShippingEvent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO order_events (
			event_id, order_id, record_type, status,
			actor_pubkey, tracking, reason, created_at
		) VALUES ($1,$2,'shipping',$3,'',$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.EventID, ev.OrderID, string(ev.Status), ev.Tracking, ev.Reason, ev.Timestamp)
	return err
}

// ListOrderEvents returns the cached event set for one order, split into the
// two streams the lifecycle machine folds over.
func (s *Store) ListOrderEvents(ctx context.Context, orderID string) ([]models.OrderStatusEvent, []models.ShippingEvent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT event_id, record_type, status, actor_pubkey, tracking, reason, created_at
		FROM order_events
		WHERE order_id=$1
		ORDER BY created_at, event_id
	`, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var statuses []models.OrderStatusEvent
	var shippings []models.ShippingEvent
	for rows.Next() {
		var eventID, recordType, status, actor, tracking, reason string
		var createdAt time.Time
		if err := rows.Scan(&eventID, &recordType, &status, &actor, &tracking, &reason, &createdAt); err != nil {
			return nil, nil, err
		}
		switch recordType {
		case "status":
			statuses = append(statuses, models.OrderStatusEvent{
				EventID:     eventID,
				OrderID:     orderID,
				Status:      models.OrderStatus(status),
				ActorPubkey: actor,
				Tracking:    tracking,
				Reason:      reason,
				Timestamp:   createdAt,
			})
		case "shipping":
			shippings = append(shippings, models.ShippingEvent{
				EventID:   eventID,
				OrderID:   orderID,
				Status:    models.ShippingStatus(status),
				Tracking:  tracking,
				Reason:    reason,
				Timestamp: createdAt,
			})
		}
	}
	return statuses, shippings, rows.Err()
}

func (s *Store) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO invoices (
			invoice_id, order_id, payee_pubkey, payee_name, amount_sats,
			payment_request, role, status, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (invoice_id) DO NOTHING
	`,
		inv.ID,
		inv.OrderID,
		inv.PayeePubkey,
		inv.PayeeName,
		inv.AmountSats,
		inv.PaymentRequest,
		string(inv.Role),
		string(inv.Status),
		inv.ExpiresAt,
	)
	return err
}

// UpdateInvoiceStatus moves an invoice to the target status, but only from
// a non-terminal state; paid, failed and expired never change again here.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE invoices
		SET status=$2, updated_at=now()
		WHERE invoice_id=$1 AND status IN ('pending','processing')
	`, invoiceID, string(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT invoice_id, order_id, payee_pubkey, payee_name, amount_sats,
			payment_request, role, status, expires_at
		FROM invoices WHERE invoice_id=$1
	`, invoiceID)

	var inv models.Invoice
	var role, status string
	err := row.Scan(
		&inv.ID,
		&inv.OrderID,
		&inv.PayeePubkey,
		&inv.PayeeName,
		&inv.AmountSats,
		&inv.PaymentRequest,
		&role,
		&status,
		&inv.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Role = models.InvoiceRole(role)
	inv.Status = models.InvoiceStatus(status)
	return &inv, nil
}

func (s *Store) MarkExpiredInvoices(ctx context.Context, now time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE invoices
		SET status='expired', updated_at=now()
		WHERE status='pending' AND expires_at < $1
	`, now)
	return err
}
