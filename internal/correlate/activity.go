package correlate

import (
	"sync"
	"time"
)

// ActivityType labels a single correlator action.
type ActivityType string

const (
	ActivityAttach  ActivityType = "attach"
	ActivityCluster ActivityType = "cluster"
	ActivityTrusted ActivityType = "trusted"
	ActivityExpire  ActivityType = "expire"
)

// Activity is one entry in the correlator's recent-work log.
type Activity struct {
	Type    ActivityType
	Time    time.Time
	Region  string
	Details string
}

// Stats holds running correlator counters.
type Stats struct {
	CyclesRun        int
	ReportsScored    int
	ClustersFormed   int
	ReportsAttached  int
	TrustedSingles   int
	IncidentsEmitted int
	StartTime        time.Time
}

const maxActivityEntries = 50

type activityLog struct {
	mu      sync.Mutex
	entries [maxActivityEntries]Activity
	index   int
	stats   Stats
}

func (l *activityLog) add(actType ActivityType, region, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.index] = Activity{
		Type:    actType,
		Time:    time.Now(),
		Region:  region,
		Details: details,
	}
	l.index = (l.index + 1) % maxActivityEntries
}

// recent returns up to count entries, newest first.
func (l *activityLog) recent(count int) []Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count > maxActivityEntries {
		count = maxActivityEntries
	}
	result := make([]Activity, 0, count)
	idx := (l.index - 1 + maxActivityEntries) % maxActivityEntries
	for i := 0; i < count; i++ {
		act := l.entries[idx]
		if act.Time.IsZero() {
			break
		}
		result = append(result, act)
		idx = (idx - 1 + maxActivityEntries) % maxActivityEntries
	}
	return result
}
