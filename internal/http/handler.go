package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"satstall/internal/checkout"
	"satstall/internal/events"
	"satstall/internal/lifecycle"
	"satstall/internal/models"
	"satstall/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// Handler exposes the checkout engine over HTTP. Sessions are held in
// memory for the duration of one checkout attempt; orders and invoices are
// cached in the store.
type Handler struct {
	Coordinator *checkout.Coordinator
	Store       *store.Store

	mu       sync.Mutex
	sessions map[string]*checkout.Session
}

func NewHandler(coordinator *checkout.Coordinator, st *store.Store) *Handler {
	return &Handler{
		Coordinator: coordinator,
		Store:       st,
		sessions:    make(map[string]*checkout.Session),
	}
}

type lineItemRequest struct {
	ProductID        string `json:"productId"`
	SellerPubkey     string `json:"sellerPubkey"`
	UnitAmountSats   int64  `json:"unitAmountSats"`
	Quantity         int64  `json:"quantity"`
	ShippingMethodID string `json:"shippingMethodId"`
}

type recipientRequest struct {
	Pubkey     string `json:"pubkey"`
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

type checkoutRequest struct {
	Buyer           string                        `json:"buyer"`
	Items           []lineItemRequest             `json:"items"`
	ShippingCosts   map[string]int64              `json:"shippingCosts"`
	Recipients      map[string][]recipientRequest `json:"recipients"`
	ShippingAddress string                        `json:"shippingAddress"`
	Notes           string                        `json:"notes"`
}

type invoiceView struct {
	ID             string `json:"id"`
	OrderID        string `json:"orderId"`
	Payee          string `json:"payee"`
	PayeeName      string `json:"payeeName,omitempty"`
	AmountSats     int64  `json:"amountSats"`
	PaymentRequest string `json:"paymentRequest"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
	Status         string `json:"status"`
	Role           string `json:"role"`
}

type sellerResultView struct {
	Seller   string        `json:"seller"`
	OrderID  string        `json:"orderId,omitempty"`
	Error    string        `json:"error,omitempty"`
	Skipped  []skippedView `json:"skipped,omitempty"`
	Invoices []string      `json:"invoiceIds,omitempty"`
}

type skippedView struct {
	Recipient string `json:"recipient"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason"`
}

type sessionView struct {
	SessionID string             `json:"sessionId"`
	Buyer     string             `json:"buyer"`
	Results   []sellerResultView `json:"results"`
	Invoices  []invoiceView      `json:"invoices"`
	Index     int                `json:"currentIndex"`
	Complete  bool               `json:"complete"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	buyer, err := events.DecodeNpub(req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid buyer pubkey")
		return
	}

	in := checkout.Input{
		BuyerPubkey:     buyer,
		ShippingCosts:   req.ShippingCosts,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	}
	for _, it := range req.Items {
		seller, err := events.DecodeNpub(it.SellerPubkey)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid seller pubkey for product "+it.ProductID)
			return
		}
		in.Items = append(in.Items, models.LineItem{
			ProductID:        it.ProductID,
			SellerPubkey:     seller,
			UnitAmountSats:   it.UnitAmountSats,
			Quantity:         it.Quantity,
			ShippingMethodID: it.ShippingMethodID,
		})
	}
	if len(req.Recipients) > 0 {
		in.Recipients = make(map[string][]models.RevenueShareRecipient, len(req.Recipients))
		for seller, recs := range req.Recipients {
			key, err := events.DecodeNpub(seller)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid recipient config for seller "+seller)
				return
			}
			for _, rec := range recs {
				pk, err := events.DecodeNpub(rec.Pubkey)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid recipient pubkey "+rec.Pubkey)
					return
				}
				in.Recipients[key] = append(in.Recipients[key], models.RevenueShareRecipient{
					RecipientPubkey: pk,
					DisplayName:     rec.Name,
					Percentage:      rec.Percentage,
				})
			}
		}
	}

	sess, err := h.Coordinator.Begin(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, checkout.ErrMissingShipping):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	h.persistSession(r.Context(), sess)

	h.mu.Lock()
	h.sessions[sess.ID] = sess
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, sessionToView(sess))
}

// persistSession caches the orders and invoices the checkout produced so
// receipt updates and order views survive the in-memory session.
func (h *Handler) persistSession(ctx context.Context, sess *checkout.Session) {
	if h.Store == nil {
		return
	}
	for _, res := range sess.Results {
		if res.Failed() {
			continue
		}
		if order, ok := sess.Order(res); ok {
			_ = h.Store.InsertOrder(ctx, &order)
		}
		for _, inv := range res.Invoices {
			inv := inv
			_ = h.Store.InsertInvoice(ctx, &inv)
		}
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *checkout.Session {
	id := chi.URLParam(r, "sessionId")
	h.mu.Lock()
	sess := h.sessions[id]
	h.mu.Unlock()
	if sess == nil {
		writeError(w, http.StatusNotFound, "checkout session not found")
		return nil
	}
	return sess
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(sess))
}

type payRequest struct {
	Manual bool `json:"manual"`
}

func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceId")

	var req payRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.Manual {
		if !sess.Tracker.MarkPaid(invoiceID) {
			writeError(w, http.StatusConflict, "invoice cannot be marked paid")
			return
		}
		h.invoicePaid(r.Context(), invoiceID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "paid", "complete": sess.Tracker.IsComplete()})
		return
	}

	sess.Tracker.MarkProcessing(invoiceID)
	if err := h.Coordinator.AwaitReceipt(r.Context(), sess, invoiceID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// not a failure: the payer may retry or skip
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
			return
		}
		writeError(w, http.StatusInternalServerError, "confirmation wait failed")
		return
	}
	h.invoicePaid(r.Context(), invoiceID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "paid", "complete": sess.Tracker.IsComplete()})
}

func (h *Handler) invoicePaid(ctx context.Context, invoiceID string) {
	if h.Store == nil {
		return
	}
	if _, err := h.Store.UpdateInvoiceStatus(ctx, invoiceID, models.InvoicePaid); err != nil {
		// cache only; the tracker already holds the authoritative session state
		return
	}
}

func (h *Handler) PayAll(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	for _, inv := range sess.Tracker.Invoices() {
		if inv.Status == models.InvoicePending || inv.Status == models.InvoiceProcessing {
			h.invoicePaid(r.Context(), inv.ID)
		}
	}
	marked := sess.Tracker.PayAll()
	writeJSON(w, http.StatusOK, map[string]any{"marked": marked, "complete": sess.Tracker.IsComplete()})
}

type orderView struct {
	OrderID   string            `json:"orderId"`
	Seller    string            `json:"seller"`
	Buyer     string            `json:"buyer"`
	TotalSats int64             `json:"totalSats"`
	Status    string            `json:"status"`
	Shipped   bool              `json:"shipped"`
	CreatedAt string            `json:"createdAt"`
	Actions   []orderActionView `json:"actions,omitempty"`
}

type orderActionView struct {
	Kind  string `json:"kind"`
	To    string `json:"to,omitempty"`
	Label string `json:"label"`
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	order, state, ok := h.loadOrder(w, r, orderID)
	if !ok {
		return
	}

	view := orderView{
		OrderID:   order.ID,
		Seller:    order.SellerPubkey,
		Buyer:     order.BuyerPubkey,
		TotalSats: order.TotalSats,
		Status:    string(state.Status),
		Shipped:   state.Shipped(),
		CreatedAt: order.CreatedAt.Format(time.RFC3339),
	}
	if actor := r.URL.Query().Get("actor"); actor != "" {
		if hex, err := events.DecodeNpub(actor); err == nil {
			if role, ok := lifecycle.RoleOf(*order, hex); ok {
				for _, a := range lifecycle.Actions(state, role) {
					view.Actions = append(view.Actions, orderActionView{
						Kind:  string(a.Kind),
						To:    string(a.To),
						Label: a.Label,
					})
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request, orderID string) (*models.Order, lifecycle.State, bool) {
	order, err := h.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
		} else {
			writeError(w, http.StatusInternalServerError, "get order failed")
		}
		return nil, lifecycle.State{}, false
	}
	statuses, shippings, err := h.Store.ListOrderEvents(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load order events failed")
		return nil, lifecycle.State{}, false
	}
	return order, lifecycle.Derive(statuses, shippings), true
}

type statusRequest struct {
	Actor  string `json:"actor"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor, err := events.DecodeNpub(req.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor pubkey")
		return
	}

	order, state, ok := h.loadOrder(w, r, orderID)
	if !ok {
		return
	}

	eventID, err := h.Coordinator.UpdateStatus(r.Context(), *order, state, actor, models.OrderStatus(req.Status), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "actor is not a party to this order")
		case errors.Is(err, checkout.ErrIllegalTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadGateway, "status publish failed")
		}
		return
	}

	_ = h.Store.InsertStatusEvent(r.Context(), models.OrderStatusEvent{
		EventID:     eventID,
		OrderID:     orderID,
		Status:      models.OrderStatus(req.Status),
		ActorPubkey: actor,
		Reason:      req.Reason,
		Timestamp:   time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, map[string]string{"eventId": eventID})
}

type shipRequest struct {
	Actor    string `json:"actor"`
	Tracking string `json:"tracking"`
}

func (h *Handler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor, err := events.DecodeNpub(req.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor pubkey")
		return
	}

	order, state, ok := h.loadOrder(w, r, orderID)
	if !ok {
		return
	}

	shipID, err := h.Coordinator.MarkShipped(r.Context(), *order, state, actor, req.Tracking)
	var shipErr *checkout.ShippingPublishError
	switch {
	case err == nil:
		_ = h.Store.InsertShippingEvent(r.Context(), models.ShippingEvent{
			EventID:   shipID,
			OrderID:   orderID,
			Status:    models.ShippingShipped,
			Tracking:  req.Tracking,
			Timestamp: time.Now().UTC(),
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "shipped"})
	case errors.As(err, &shipErr):
		// status half landed; order is valid but missing the shipped flag
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "processing",
			"warning": shipErr.Error(),
		})
	case errors.Is(err, checkout.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "actor is not a party to this order")
	case errors.Is(err, checkout.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "shipping publish failed")
	}
}

func sessionToView(sess *checkout.Session) sessionView {
	view := sessionView{
		SessionID: sess.ID,
		Buyer:     sess.BuyerPubkey,
		Index:     sess.Tracker.Index(),
		Complete:  sess.Tracker.IsComplete(),
	}
	for _, res := range sess.Results {
		rv := sellerResultView{Seller: res.SellerPubkey, OrderID: res.OrderID}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		for _, sk := range res.Skipped {
			rv.Skipped = append(rv.Skipped, skippedView{Recipient: sk.RecipientPubkey, Name: sk.DisplayName, Reason: sk.Reason})
		}
		for _, inv := range res.Invoices {
			rv.Invoices = append(rv.Invoices, inv.ID)
		}
		view.Results = append(view.Results, rv)
	}
	for _, inv := range sess.Tracker.Invoices() {
		iv := invoiceView{
			ID:             inv.ID,
			OrderID:        inv.OrderID,
			Payee:          inv.PayeePubkey,
			PayeeName:      inv.PayeeName,
			AmountSats:     inv.AmountSats,
			PaymentRequest: inv.PaymentRequest,
			Status:         string(inv.Status),
			Role:           string(inv.Role),
		}
		if !inv.ExpiresAt.IsZero() {
			iv.ExpiresAt = inv.ExpiresAt.Format(time.RFC3339)
		}
		view.Invoices = append(view.Invoices, iv)
	}
	return view
}
