// Package collect gathers raw reports from outside platforms. Each
// collector speaks one platform; runners poll them independently so a dead
// platform never stalls the rest.
package collect

import (
	"context"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

// Collector is the interface every platform adapter implements.
type Collector interface {
	// Name returns a human-readable collector name.
	Name() string

	// Type returns the source type stamped on collected reports.
	Type() report.SourceType

	// PollInterval returns how often the runner should call Collect.
	PollInterval() time.Duration

	// Collect retrieves the latest batch of reports.
	Collect(ctx context.Context) ([]report.Raw, error)
}
