package application

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// DayCache memoizes resolved days keyed by (date, subject). Entries are
// bounded by an LRU capacity and a TTL so a long-running process cannot grow
// without limit and stale entries age out even without an explicit purge.
//
// Days are deep-copied on both insert and lookup: cached values must never
// alias slices a caller might mutate.
type DayCache struct {
	entries *lru.LRU[string, schedule.Day]
}

// NewDayCache constructs a cache holding at most size days, each valid for
// ttl. A non-positive size or ttl falls back to a sane default.
func NewDayCache(size int, ttl time.Duration) *DayCache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DayCache{
		entries: lru.NewLRU[string, schedule.Day](size, nil, ttl),
	}
}

// Get returns a copy of the cached day for (date, subject), if present.
func (c *DayCache) Get(date time.Time, subjectID string) (schedule.Day, bool) {
	if c == nil || c.entries == nil {
		return schedule.Day{}, false
	}
	day, ok := c.entries.Get(dayCacheKey(date, subjectID))
	if !ok {
		return schedule.Day{}, false
	}
	return day.Clone(), true
}

// Put stores a copy of the resolved day for (date, subject).
func (c *DayCache) Put(date time.Time, subjectID string, day schedule.Day) {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Add(dayCacheKey(date, subjectID), day.Clone())
}

// Purge drops every cached day. Called whenever a schedule-defining input
// changes: rules, assignments, exceptions, the catalog, or the scheme anchor.
func (c *DayCache) Purge() {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Purge()
}

// Len reports the number of live entries, for diagnostics.
func (c *DayCache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func dayCacheKey(date time.Time, subjectID string) string {
	if subjectID == "" {
		subjectID = "default"
	}
	return date.UTC().Format("2006-01-02") + "|" + subjectID
}
