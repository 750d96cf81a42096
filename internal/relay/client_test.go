package relay

import (
	"encoding/json"
	"testing"
	"time"

	"satstall/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterministic(t *testing.T) {
	ev := events.Event{
		Pubkey:    "a1b2",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Kind:      events.KindStatusUpdate,
		Tags:      [][]string{{"order", "ord-1"}, {"type", "status-update"}},
		Content:   "confirmed",
	}

	first := EventID(ev)
	second := EventID(ev)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	ev.Content = "cancelled"
	assert.NotEqual(t, first, EventID(ev))
}

func TestWireRoundTrip(t *testing.T) {
	ev := events.Event{
		ID:        "abc123",
		Pubkey:    "deadbeef",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Kind:      events.KindPaymentReceipt,
		Tags:      [][]string{{"invoice", "inv-1"}},
		Content:   "",
	}

	data, err := json.Marshal(toWire(ev))
	require.NoError(t, err)

	var w wireEvent
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, ev, fromWire(w))
}

func TestWireCreatedAtIsUnixSeconds(t *testing.T) {
	ev := events.Event{CreatedAt: time.Unix(1700000000, 0).UTC()}
	w := toWire(ev)
	assert.Equal(t, int64(1700000000), w.CreatedAt)
}
