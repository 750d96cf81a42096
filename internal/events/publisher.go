package events

import "context"

// Publisher appends one record to the distributed event log and returns the
// assigned event id. Implementations may fail with a rejection or a timeout;
// callers isolate failures per record.
type Publisher interface {
	Publish(ctx context.Context, ev Event) (string, error)
}
