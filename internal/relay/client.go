package relay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"satstall/internal/events"

	"github.com/gorilla/websocket"
)

// Client speaks the relay websocket protocol: JSON arrays with a verb in
// position zero. One Client wraps one connection; reconnect policy belongs
// to the caller.
type Client struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint}
}

func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

func (c *Client) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// wireEvent is the relay-side JSON shape; created_at travels as unix seconds.
type wireEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

func toWire(ev events.Event) wireEvent {
	return wireEvent{
		ID:        ev.ID,
		Pubkey:    ev.Pubkey,
		CreatedAt: ev.CreatedAt.Unix(),
		Kind:      ev.Kind,
		Tags:      ev.Tags,
		Content:   ev.Content,
	}
}

func fromWire(w wireEvent) events.Event {
	return events.Event{
		ID:        w.ID,
		Pubkey:    w.Pubkey,
		CreatedAt: time.Unix(w.CreatedAt, 0).UTC(),
		Kind:      w.Kind,
		Tags:      w.Tags,
		Content:   w.Content,
	}
}

// EventID is the content hash of the canonical serialization, so the same
// record always carries the same id no matter which session publishes it.
func EventID(ev events.Event) string {
	canonical, _ := json.Marshal([]any{0, ev.Pubkey, ev.CreatedAt.Unix(), ev.Kind, ev.Tags, ev.Content})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Publish sends one event and waits for the relay's OK acknowledgement.
func (c *Client) Publish(ctx context.Context, ev events.Event) (string, error) {
	if c.Conn == nil {
		return "", errors.New("not connected")
	}
	if ev.ID == "" {
		ev.ID = EventID(ev)
	}

	payload, err := json.Marshal([]any{"EVENT", toWire(ev)})
	if err != nil {
		return "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.Conn.SetWriteDeadline(deadline)
		_ = c.Conn.SetReadDeadline(deadline)
	}
	if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return "", err
	}

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return "", err
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(msg, &frame); err != nil || len(frame) < 3 {
			continue
		}
		var verb string
		if err := json.Unmarshal(frame[0], &verb); err != nil || verb != "OK" {
			continue
		}
		var id string
		if err := json.Unmarshal(frame[1], &id); err != nil || id != ev.ID {
			continue
		}
		var accepted bool
		_ = json.Unmarshal(frame[2], &accepted)
		if !accepted {
			reason := ""
			if len(frame) > 3 {
				_ = json.Unmarshal(frame[3], &reason)
			}
			return "", fmt.Errorf("publish rejected: %s", reason)
		}
		return ev.ID, nil
	}
}

// Subscribe opens a subscription for the given kinds under subID.
func (c *Client) Subscribe(ctx context.Context, subID string, kinds []int, since time.Time) error {
	if c.Conn == nil {
		return errors.New("not connected")
	}
	filter := map[string]any{"kinds": kinds}
	if !since.IsZero() {
		filter["since"] = since.Unix()
	}
	payload, err := json.Marshal([]any{"REQ", subID, filter})
	if err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, payload)
}

// Read blocks for the next frame and returns the event if the frame carries
// one. Non-event frames (EOSE, NOTICE, OK) return ok=false with no error.
func (c *Client) Read(ctx context.Context) (events.Event, bool, error) {
	if c.Conn == nil {
		return events.Event{}, false, errors.New("not connected")
	}
	_, msg, err := c.Conn.ReadMessage()
	if err != nil {
		return events.Event{}, false, err
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame) < 1 {
		return events.Event{}, false, nil
	}
	var verb string
	if err := json.Unmarshal(frame[0], &verb); err != nil || verb != "EVENT" || len(frame) < 3 {
		return events.Event{}, false, nil
	}
	var w wireEvent
	if err := json.Unmarshal(frame[2], &w); err != nil {
		return events.Event{}, false, fmt.Errorf("malformed event frame: %w", err)
	}
	return fromWire(w), true, nil
}
