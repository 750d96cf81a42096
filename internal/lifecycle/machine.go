package lifecycle

import (
	"sort"

	"satstall/internal/models"
)

// State is the derived view of one order. Status is never stored anywhere;
// it is recomputed from the event stream on demand, so a fresh fetch from
// the relays can always rebuild it.
type State struct {
	Status     models.OrderStatus
	HasShipped bool
	UpdatedAt  int64
}

// Shipped is the dual-track sub-state: an order reads as shipped only while
// its primary status is still processing.
func (s State) Shipped() bool {
	return s.Status == models.OrderProcessing && s.HasShipped
}

func Initial() State {
	return State{Status: models.OrderPending}
}

// ApplyStatus folds one status event into the state. Every status event
// overwrites the status, including repeats of the current one, which keeps
// replay idempotent.
func ApplyStatus(s State, ev models.OrderStatusEvent) State {
	s.Status = ev.Status
	if ts := ev.Timestamp.Unix(); ts > s.UpdatedAt {
		s.UpdatedAt = ts
	}
	return s
}

// ApplyShipping folds one shipping event. Shipping events never touch the
// primary status, only the shipped flag.
func ApplyShipping(s State, ev models.ShippingEvent) State {
	if ev.Status == models.ShippingShipped {
		s.HasShipped = true
	}
	if ts := ev.Timestamp.Unix(); ts > s.UpdatedAt {
		s.UpdatedAt = ts
	}
	return s
}

// Derive replays the full event set for one order. Events are re-sorted by
// timestamp before folding, so arrival order from the relays does not matter,
// and duplicate events cannot change the result.
func Derive(statuses []models.OrderStatusEvent, shippings []models.ShippingEvent) State {
	type step struct {
		ts     int64
		id     string
		status *models.OrderStatusEvent
		ship   *models.ShippingEvent
	}

	steps := make([]step, 0, len(statuses)+len(shippings))
	for i := range statuses {
		steps = append(steps, step{ts: statuses[i].Timestamp.Unix(), id: statuses[i].EventID, status: &statuses[i]})
	}
	for i := range shippings {
		steps = append(steps, step{ts: shippings[i].Timestamp.Unix(), id: shippings[i].EventID, ship: &shippings[i]})
	}
	// ties break on event id so a permuted arrival order cannot change the fold
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].ts != steps[j].ts {
			return steps[i].ts < steps[j].ts
		}
		return steps[i].id < steps[j].id
	})

	s := Initial()
	for _, st := range steps {
		if st.status != nil {
			s = ApplyStatus(s, *st.status)
		} else {
			s = ApplyShipping(s, *st.ship)
		}
	}
	return s
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// RoleOf identifies the actor relative to the order. Anyone else has no
// legal transitions.
func RoleOf(order models.Order, actorPubkey string) (Role, bool) {
	switch actorPubkey {
	case order.BuyerPubkey:
		return RoleBuyer, true
	case order.SellerPubkey:
		return RoleSeller, true
	}
	return "", false
}

type ActionKind string

const (
	ActionStatus    ActionKind = "status"
	ActionMarkShips ActionKind = "mark-shipped"
)

// Action is one legal next step for a role given the current derived state.
// Status actions carry the target status; the mark-shipped action keeps the
// status at processing and sets the shipped flag via a shipping event.
type Action struct {
	Kind  ActionKind
	To    models.OrderStatus
	Label string
}

// Actions returns the role-gated transition set for the derived state.
func Actions(s State, role Role) []Action {
	if role != RoleBuyer && role != RoleSeller {
		return nil
	}
	switch s.Status {
	case models.OrderPending:
		if role == RoleSeller {
			return []Action{
				{Kind: ActionStatus, To: models.OrderConfirmed, Label: "confirm order"},
				{Kind: ActionStatus, To: models.OrderCancelled, Label: "cancel order"},
			}
		}
		return []Action{{Kind: ActionStatus, To: models.OrderCancelled, Label: "cancel order"}}

	case models.OrderConfirmed:
		if role == RoleSeller {
			return []Action{{Kind: ActionStatus, To: models.OrderProcessing, Label: "start processing"}}
		}
		return []Action{{Kind: ActionStatus, To: models.OrderCancelled, Label: "cancel order"}}

	case models.OrderProcessing:
		if role == RoleSeller {
			var out []Action
			if !s.Shipped() {
				out = append(out, Action{Kind: ActionMarkShips, To: models.OrderProcessing, Label: "mark shipped"})
				out = append(out, Action{Kind: ActionStatus, To: models.OrderCompleted, Label: "complete order"})
			} else {
				out = append(out, Action{Kind: ActionStatus, To: models.OrderCompleted, Label: "mark delivered"})
			}
			return out
		}
		return []Action{
			{Kind: ActionStatus, To: models.OrderCompleted, Label: "confirm receipt"},
			{Kind: ActionStatus, To: models.OrderCancelled, Label: "cancel order"},
		}
	}
	// completed and cancelled are terminal
	return nil
}

// CanTransition reports whether role may move the order from its derived
// state to the target status.
func CanTransition(s State, role Role, to models.OrderStatus) bool {
	for _, a := range Actions(s, role) {
		if a.Kind == ActionStatus && a.To == to {
			return true
		}
	}
	return false
}

// CanMarkShipped reports whether role may record shipment for the derived
// state.
func CanMarkShipped(s State, role Role) bool {
	for _, a := range Actions(s, role) {
		if a.Kind == ActionMarkShips {
			return true
		}
	}
	return false
}
