package ports

import "context"

// HealthChecker probes one backing dependency (Postgres, Redis) for the
// aggregated /health endpoint. A non-nil error marks the dependency down.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
