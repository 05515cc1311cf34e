package api

import (
	"context"
	"time"
)

// QueryTimeout bounds every store query issued by a handler. Dispatchers
// retry through the client; a hung query must not hold a connection.
const QueryTimeout = 10 * time.Second

// WithQueryTimeout derives a context capped at QueryTimeout for a single
// store round trip
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}
