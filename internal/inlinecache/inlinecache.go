// Package inlinecache implements per-call-site inline caches: a small
// state machine that tracks how many distinct shapes a site has seen
// (Uninitialized, Monomorphic, Polymorphic up to 4, then Megamorphic) so
// the baseline compiler can decide whether a site is worth specializing.
package inlinecache

// State is an inline cache's monotonic lifecycle stage. A cache only ever
// moves forward — Uninitialized -> Monomorphic -> Polymorphic -> Megamorphic
// — never back, matching the reference interpreter's "caches never
// un-observe a shape" rule.
type State uint8

const (
	Uninitialized State = iota
	Monomorphic
	Polymorphic
	Megamorphic
)

func (s State) String() string {
	switch s {
	case Monomorphic:
		return "Monomorphic"
	case Polymorphic:
		return "Polymorphic"
	case Megamorphic:
		return "Megamorphic"
	default:
		return "Uninitialized"
	}
}

// maxPolymorphicEntries is the cap on distinct shapes an IC tracks before
// giving up and going Megamorphic.
const maxPolymorphicEntries = 4

// entry is one observed shape at a call site with its hit/miss counts; it
// records no property offset or handler, so a hit reports only that the
// shape was seen before. Shape is an opaque identifier — typically a
// hidden-class or object-layout ID handed in by the caller — this package
// never interprets it.
type entry struct {
	shape   uint64
	misses  uint64
	hits    uint64
}

// Cache is a single call site's inline cache.
type Cache struct {
	state       State
	entries     []entry
	totalHits   uint64
	totalMisses uint64
}

// New returns an empty, Uninitialized cache.
func New() *Cache {
	return &Cache{state: Uninitialized}
}

// State reports the cache's current lifecycle stage.
func (c *Cache) State() State { return c.state }

// Lookup reports whether shape has a recorded entry and, if so, increments
// its hit count. Every call — hit or miss — advances one of the site's
// running totals (totalHits/totalMisses), so TotalHits()+TotalMisses()
// always equals the number of lookups ever performed at this site, even
// across the entries wipe on the Megamorphic transition.
func (c *Cache) Lookup(shape uint64) bool {
	for i := range c.entries {
		if c.entries[i].shape == shape {
			c.entries[i].hits++
			c.totalHits++
			return true
		}
	}
	c.totalMisses++
	return false
}

// Observe records an observation of shape: either adding it as a new entry
// (advancing the state machine) or, if already Megamorphic, doing nothing
// further — Lookup above has already counted the miss. Every entry added
// after the first (the one that pushes the cache from Monomorphic to
// Polymorphic and each later polymorphic entry) carries a seed miss count
// of 1 in its own bookkeeping, independent of the site-wide totals Lookup
// maintains.
func (c *Cache) Observe(shape uint64) {
	if c.Lookup(shape) {
		return
	}

	switch c.state {
	case Uninitialized:
		c.entries = append(c.entries, entry{shape: shape, hits: 1})
		c.state = Monomorphic

	case Monomorphic:
		c.entries = append(c.entries, entry{shape: shape, hits: 1, misses: 1})
		c.state = Polymorphic

	case Polymorphic:
		if len(c.entries) < maxPolymorphicEntries {
			c.entries = append(c.entries, entry{shape: shape, hits: 1, misses: 1})
		} else {
			c.state = Megamorphic
			c.entries = nil
		}

	case Megamorphic:
		// Lookup already recorded this as a miss; Megamorphic tracks no
		// entries to update.
	}
}

// Shapes returns the distinct shapes currently tracked, in observation
// order. Empty once the cache has gone Megamorphic.
func (c *Cache) Shapes() []uint64 {
	shapes := make([]uint64, len(c.entries))
	for i, e := range c.entries {
		shapes[i] = e.shape
	}
	return shapes
}

// TotalMisses sums every miss ever recorded at this site, including misses
// against entries later dropped on the Megamorphic transition — this is a
// running counter independent of the current entries slice, not a sum over
// it, so it survives that transition.
func (c *Cache) TotalMisses() uint64 {
	return c.totalMisses
}

// TotalHits sums every hit ever recorded at this site. Like TotalMisses,
// it is a running counter independent of the entries slice, so hits
// against entries later dropped on the Megamorphic transition are not
// lost.
func (c *Cache) TotalHits() uint64 {
	return c.totalHits
}

// TotalLookups is the number of Lookup calls (direct or via Observe) ever
// made against this site. TotalHits()+TotalMisses() always equals
// TotalLookups(), since every Lookup call increments exactly one of them.
func (c *Cache) TotalLookups() uint64 {
	return c.totalHits + c.totalMisses
}
