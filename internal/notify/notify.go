// Package notify delivers incident alerts. The interface is narrow so new
// channels (webhooks, messaging bots) slot in without touching the
// pipeline.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/report"
)

// Notifier delivers one incident alert.
type Notifier interface {
	Notify(ctx context.Context, inc report.Incident) error
}

// LogNotifier writes alerts to the structured log. It is the default
// channel and the fallback when no other is configured.
type LogNotifier struct{}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, inc report.Incident) error {
	logging.Info(FormatAlert(inc),
		"cluster", inc.ClusterID,
		"region", inc.Region,
		"kind", inc.Type,
		"confidence", inc.Confidence,
		"members", inc.MemberCount,
	)
	return nil
}

// FormatAlert renders the human-readable alert line for an incident.
func FormatAlert(inc report.Incident) string {
	var b strings.Builder
	if inc.Type == report.IncidentUpdate {
		fmt.Fprintf(&b, "UPDATE: %s", inc.Location)
	} else {
		fmt.Fprintf(&b, "ALERT: %s", inc.Location)
	}

	fmt.Fprintf(&b, " | %d report", inc.MemberCount)
	if inc.MemberCount != 1 {
		b.WriteString("s")
	}

	sources := make([]string, len(inc.SourceTypes))
	for i, st := range inc.SourceTypes {
		sources[i] = string(st)
	}
	fmt.Fprintf(&b, " via %s", strings.Join(sources, ", "))

	fmt.Fprintf(&b, " | confidence %.0f%%", inc.Confidence*100)

	if !inc.Earliest.IsZero() {
		fmt.Fprintf(&b, " | %s", inc.Earliest.Local().Format("15:04"))
		if inc.Latest.After(inc.Earliest) {
			fmt.Fprintf(&b, "-%s", inc.Latest.Local().Format("15:04"))
		}
	}
	return b.String()
}
