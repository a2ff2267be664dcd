package balance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source is the authoritative aggregation over the transaction log. The
// cache recomputes from it whenever an entry is absent or dirty.
type Source interface {
	SumRange(ctx context.Context, from, to time.Time) (Aggregate, error)
}

type entry struct {
	agg     Aggregate
	dirty   bool
	version uint64
}

// Cache holds lazily built, invalidatable period aggregates. It is never a
// source of truth: every entry can be rebuilt from the Source at any time.
// Writers only mark entries dirty; readers recompute, so a redundant
// recomputation is harmless. The version counter keeps a recomputation that
// raced with an invalidation from clearing the fresh dirty flag.
type Cache struct {
	mu      sync.Mutex
	source  Source
	entries map[string]*entry
}

func NewCache(source Source) *Cache {
	return &Cache{
		source:  source,
		entries: make(map[string]*entry),
	}
}

// Get returns the aggregate for the period, recomputing from the Source if
// the entry is absent or dirty. Periods with no transactions yield a zero
// aggregate, not an error.
func (c *Cache) Get(ctx context.Context, p Period) (Aggregate, error) {
	c.mu.Lock()
	e, ok := c.entries[p.Key]
	if ok && !e.dirty {
		agg := e.agg
		c.mu.Unlock()
		return agg, nil
	}
	if !ok {
		e = &entry{dirty: true}
		c.entries[p.Key] = e
	}
	version := e.version
	c.mu.Unlock()

	agg, err := c.source.SumRange(ctx, p.Start, p.End)
	if err != nil {
		return Aggregate{}, fmt.Errorf("recomputing aggregate for period %s: %w", p.Key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e.agg = agg
	if e.version == version {
		e.dirty = false
	}
	return agg, nil
}

// Invalidate marks the period's entry dirty. It never deletes, is cheap and
// is safe to call redundantly.
func (c *Cache) Invalidate(p Period) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[p.Key]; ok {
		e.dirty = true
		e.version++
	}
}

// InvalidateDate marks both the daily and the monthly entry covering t.
// Daily and monthly aggregates are independent entries, so a transaction
// written for t must always invalidate both.
func (c *Cache) InvalidateDate(t time.Time) {
	c.Invalidate(Daily(t))
	c.Invalidate(Monthly(t))
}

// History returns aggregates for the `months` month-periods ending with the
// month of `now`, oldest first.
func (c *Cache) History(ctx context.Context, now time.Time, months int) ([]PeriodAggregate, error) {
	out := make([]PeriodAggregate, 0, months)
	for i := months - 1; i >= 0; i-- {
		p := Monthly(Monthly(now).Start.AddDate(0, -i, 0))
		agg, err := c.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, PeriodAggregate{Period: p, Aggregate: agg})
	}
	return out, nil
}
