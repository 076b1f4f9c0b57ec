package obs

import (
	"sync"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
)

// Cache holds one compiled Plan for a Spec, recompiling only when the
// space's topology fingerprint changes underneath it. World generation
// changes (one per publish) never invalidate a cached plan — only a
// change in (instance_id, cell_count) does.
type Cache struct {
	mu       sync.Mutex
	spec     Spec
	fields   map[arena.FieldID]int
	current  *Plan
	lastFp   contract.TopologyFingerprint
	hasPlan  bool
}

// NewCache returns a cache for spec, resolved against field component
// counts in fields.
func NewCache(spec Spec, fields map[arena.FieldID]int) *Cache {
	return &Cache{spec: spec, fields: fields}
}

// Get returns a Plan compiled against space, reusing the cached plan if
// space's fingerprint matches the last compile (P14, S5).
func (c *Cache) Get(space contract.Space) (*Plan, error) {
	fp := contract.Fingerprint(space)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasPlan && c.lastFp == fp {
		return c.current, nil
	}

	plan, err := Compile(c.spec, space, c.fields)
	if err != nil {
		return nil, err
	}
	c.current = plan
	c.lastFp = fp
	c.hasPlan = true
	return plan, nil
}

// Invalidate drops the cached plan, forcing the next Get to recompile
// regardless of fingerprint. Used when the Spec itself changes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPlan = false
	c.current = nil
}
