package ports

import (
	"context"
	"time"
)

// ExportLock guards a collection export across processes
type ExportLock interface {
	// Acquire returns ok=false without error when another holder owns key
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
