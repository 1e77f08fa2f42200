// Package directory keeps the process wide list of group labels.
package directory

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/timeout"
)

// DefaultTimeout bounds a reload.
const DefaultTimeout = 30 * time.Second

// LoadState is the lifecycle of the directory snapshot.
type LoadState int32

const (
	// Uninitialized means no reload has run yet.
	Uninitialized LoadState = iota
	// Loaded means the snapshot came from the last reload, possibly the fallback.
	Loaded
	// Stale means the snapshot was reset and must be reloaded before use.
	Stale
)

// String implements fmt.Stringer.
func (s LoadState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Stale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// Groups builds the directory from raw rows: blank and nil labels are dropped,
// the rest trimmed, de-duplicated and sorted, with models.AllGroups first.
func Groups(rows []models.GroupRow) []string {
	seen := make(map[string]struct{}, len(rows))
	labels := make([]string, 0, len(rows))

	for _, r := range rows {
		if r.GroupLabel == nil {
			continue
		}

		label := strings.TrimSpace(*r.GroupLabel)
		if label == "" || label == models.AllGroups {
			continue
		}

		if _, ok := seen[label]; ok {
			continue
		}

		seen[label] = struct{}{}
		labels = append(labels, label)
	}

	slices.Sort(labels)

	return append([]string{models.AllGroups}, labels...)
}

// Source lists the group label of every profile.
type Source interface {
	GroupRows(ctx context.Context) ([]models.GroupRow, error)
}

type snapshot struct {
	groups []string
	state  LoadState
}

// Cache owns the group directory. Readers get whole snapshots, never a
// partially rebuilt one.
type Cache struct {
	source  Source
	timeout time.Duration
	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

// New returns an uninitialized Cache. A non-positive d uses DefaultTimeout.
func New(source Source, d time.Duration) *Cache {
	if d <= 0 {
		d = DefaultTimeout
	}

	c := &Cache{source: source, timeout: d}
	c.current.Store(&snapshot{groups: fallback(), state: Uninitialized})

	return c
}

func fallback() []string {
	return []string{models.AllGroups}
}

// Reload rebuilds the directory and publishes it. Any failure publishes the
// fallback instead, so Reload never fails its caller. Concurrent calls share
// one fetch. A reload overtaken by Invalidate returns its groups but leaves
// the cache stale.
func (c *Cache) Reload(ctx context.Context) []string {
	v, _, _ := c.group.Do("reload", func() (any, error) {
		seen := c.current.Load()
		groups := fallback()

		rows, err := timeout.Call(ctx, c.timeout, "load groups", c.source.GroupRows)
		if err != nil {
			log.Warn().Err(err).Msg("group directory reload failed, using fallback")
		} else {
			groups = Groups(rows)
		}

		if !c.current.CompareAndSwap(seen, &snapshot{groups: groups, state: Loaded}) {
			log.Debug().Msg("group directory invalidated during reload, result not published")
			return groups, nil
		}

		log.Debug().Int("groups", len(groups)).Msg("group directory reloaded")

		return groups, nil
	})

	return slices.Clone(v.([]string)) //nolint:forcetypeassert
}

// Get returns a copy of the current snapshot.
func (c *Cache) Get() []string {
	return slices.Clone(c.current.Load().groups)
}

// Invalidate resets the snapshot to the fallback and marks it stale.
func (c *Cache) Invalidate() {
	c.current.Store(&snapshot{groups: fallback(), state: Stale})
}

// State returns the lifecycle state of the snapshot.
func (c *Cache) State() LoadState {
	return c.current.Load().state
}
