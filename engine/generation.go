package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"go-outbreak/types"
)

// Generation is one complete detection output. It is never modified after publication.
type Generation struct {
	ID        int64
	Clusters  []types.OutbreakCluster
	CreatedAt time.Time
}

// arena holds the current generation behind an atomic pointer so readers see
// either the old set or the new one in full.
type arena struct {
	current atomic.Pointer[Generation]

	mu     sync.Mutex
	lastID int64
}

// next allocates a generation id that is strictly increasing and tracks wall-clock milliseconds,
// so ids stay ordered across restarts.
func (a *arena) next(now time.Time) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := now.UnixMilli()
	if id <= a.lastID {
		id = a.lastID + 1
	}
	a.lastID = id
	return id
}

// publish installs g unless an equal or newer generation is already current.
func (a *arena) publish(g *Generation) bool {
	a.mu.Lock()
	if g.ID > a.lastID {
		a.lastID = g.ID
	}
	a.mu.Unlock()

	for {
		cur := a.current.Load()
		if cur != nil && cur.ID >= g.ID {
			return false
		}
		if a.current.CompareAndSwap(cur, g) {
			return true
		}
	}
}

func (a *arena) load() *Generation {
	return a.current.Load()
}
