package health

import "context"

// Pinger checks a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
