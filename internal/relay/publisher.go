package relay

import (
	"context"
	"sync"
	"time"

	"satstall/internal/events"
)

// Publisher is the events.Publisher backed by one relay connection. It dials
// lazily and re-dials once after a send failure; anything beyond that is the
// caller's retry policy.
type Publisher struct {
	Endpoint string
	Timeout  time.Duration

	mu     sync.Mutex
	client *Client
}

func NewPublisher(endpoint string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{Endpoint: endpoint, Timeout: timeout}
}

func (p *Publisher) Publish(ctx context.Context, ev events.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	id, err := p.publishLocked(ctx, ev)
	if err != nil {
		p.closeLocked()
		id, err = p.publishLocked(ctx, ev)
		if err != nil {
			p.closeLocked()
		}
	}
	return id, err
}

func (p *Publisher) publishLocked(ctx context.Context, ev events.Event) (string, error) {
	if p.client == nil {
		c := NewClient(p.Endpoint)
		if err := c.Connect(ctx); err != nil {
			return "", err
		}
		p.client = c
	}
	return p.client.Publish(ctx, ev)
}

func (p *Publisher) closeLocked() {
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}
