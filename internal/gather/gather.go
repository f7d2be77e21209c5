// Package gather fetches historical market data into local storage.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run starts the data gathering process. It returns when the gather is
	// complete or ctx is cancelled.
	Run(ctx context.Context) error
}
