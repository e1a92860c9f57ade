// Package ledger records which Mastodon notifications have been handled so a
// mention is never answered twice, even across restarts.
//
// Only commits are durable. Claims live in memory: if the process dies
// between Claim and Commit the notification is simply handled again by the
// next process.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Outcomes stored with each committed notification.
const (
	OutcomeReplied           = "replied"
	OutcomeFallback          = "fallback"
	OutcomeHelp              = "help"
	OutcomeNoData            = "no_data"
	OutcomeSkippedVisibility = "skipped_visibility"
	OutcomeSkippedIndirect   = "skipped_indirect"
	OutcomeSkippedSelf       = "skipped_self"
	OutcomeLegacy            = "legacy"
)

// Marker is the processed record for one notification.
type Marker struct {
	ProcessedAt time.Time `json:"processed_at"`
	Outcome     string    `json:"outcome"`
}

// NewMarker stamps outcome with the current time.
func NewMarker(outcome string) Marker {
	return Marker{ProcessedAt: time.Now().UTC(), Outcome: outcome}
}

// Ledger is the durable set of processed notification ids.
type Ledger interface {
	// IsProcessed reports whether id has been committed.
	IsProcessed(id string) bool
	// Claim reserves id for processing. It returns false when id is already
	// committed or claimed.
	Claim(id string) bool
	// Commit durably records id before returning. Committing an id twice is a
	// no-op.
	Commit(ctx context.Context, id string, marker Marker) error
	// Release drops a claim without recording anything.
	Release(id string)
	// Len returns the number of committed ids.
	Len() int
	Close() error
}

// persistFunc writes a single new entry; the full committed map is passed for
// engines that rewrite everything.
type persistFunc func(ctx context.Context, id string, marker Marker, all map[string]Marker) error

// core holds the in-memory state shared by every engine.
type core struct {
	mu        sync.Mutex
	committed map[string]Marker
	claims    map[string]struct{}
	persist   persistFunc
}

func newCore(committed map[string]Marker, persist persistFunc) *core {
	if committed == nil {
		committed = map[string]Marker{}
	}
	return &core{
		committed: committed,
		claims:    map[string]struct{}{},
		persist:   persist,
	}
}

func (c *core) IsProcessed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.committed[id]
	return ok
}

func (c *core) Claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.committed[id]; ok {
		return false
	}
	if _, ok := c.claims[id]; ok {
		return false
	}
	c.claims[id] = struct{}{}
	return true
}

func (c *core) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, id)
}

func (c *core) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.committed)
}

// Commit holds the lock across the flush so no reader observes an id as
// processed before it is on disk.
func (c *core) Commit(ctx context.Context, id string, marker Marker) error {
	if id == "" {
		return fmt.Errorf("commit: empty notification id")
	}
	if marker.ProcessedAt.IsZero() {
		marker.ProcessedAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.committed[id]; ok {
		delete(c.claims, id)
		return nil
	}
	c.committed[id] = marker
	if err := c.persist(ctx, id, marker, c.committed); err != nil {
		delete(c.committed, id)
		return fmt.Errorf("commit %s: %w", id, err)
	}
	delete(c.claims, id)
	return nil
}
