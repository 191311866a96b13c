package inlinecache

import "testing"

func TestNewCacheStartsUninitialized(t *testing.T) {
	c := New()
	if c.State() != Uninitialized {
		t.Errorf("expected Uninitialized, got %s", c.State())
	}
}

func TestFirstObserveGoesMonomorphic(t *testing.T) {
	c := New()
	c.Observe(1)
	if c.State() != Monomorphic {
		t.Errorf("expected Monomorphic after first shape, got %s", c.State())
	}
	shapes := c.Shapes()
	if len(shapes) != 1 || shapes[0] != 1 {
		t.Errorf("expected shapes [1], got %v", shapes)
	}
}

func TestSecondDistinctShapeGoesPolymorphic(t *testing.T) {
	c := New()
	c.Observe(1)
	c.Observe(2)
	if c.State() != Polymorphic {
		t.Errorf("expected Polymorphic after second distinct shape, got %s", c.State())
	}
}

func TestSameShapeObservedTwiceStaysMonomorphic(t *testing.T) {
	c := New()
	c.Observe(1)
	c.Observe(1)
	if c.State() != Monomorphic {
		t.Errorf("expected to remain Monomorphic when the same shape repeats, got %s", c.State())
	}
}

func TestPolymorphicCapsAtFourThenGoesMegamorphic(t *testing.T) {
	c := New()
	c.Observe(1)
	c.Observe(2)
	c.Observe(3)
	c.Observe(4)
	if c.State() != Polymorphic {
		t.Fatalf("expected Polymorphic at 4 entries, got %s", c.State())
	}
	c.Observe(5) // 5th distinct shape pushes over the cap
	if c.State() != Megamorphic {
		t.Errorf("expected Megamorphic once the cap is exceeded, got %s", c.State())
	}
	if len(c.Shapes()) != 0 {
		t.Errorf("expected entries cleared on the Megamorphic transition")
	}
}

func TestMegamorphicNeverGoesBack(t *testing.T) {
	c := New()
	for i := uint64(1); i <= 5; i++ {
		c.Observe(i)
	}
	if c.State() != Megamorphic {
		t.Fatalf("expected Megamorphic, got %s", c.State())
	}
	c.Observe(1) // re-observing an old shape must not resurrect a Mono/Poly state
	if c.State() != Megamorphic {
		t.Errorf("expected to remain Megamorphic, got %s", c.State())
	}
}

func TestLookupHitIncrementsHitsAndReturnsTrue(t *testing.T) {
	c := New()
	c.Observe(1)
	if !c.Lookup(1) {
		t.Errorf("expected Lookup hit for an observed shape")
	}
	if c.Lookup(99) {
		t.Errorf("expected Lookup miss for an unobserved shape")
	}
}

// TestScenarioS3FifthShapeGoesMegamorphic matches spec.md's S3 end-to-end
// example: shapes 10, 20, 30, 40, 50 observed in order leave the site
// Megamorphic after the fifth, and a lookup for the original shape misses.
func TestScenarioS3FifthShapeGoesMegamorphic(t *testing.T) {
	c := New()
	for _, shape := range []uint64{10, 20, 30, 40, 50} {
		c.Observe(shape)
	}
	if c.State() != Megamorphic {
		t.Fatalf("expected Megamorphic after the fifth distinct shape, got %s", c.State())
	}
	if c.Lookup(10) {
		t.Errorf("expected Lookup(10) to miss once the site is Megamorphic")
	}
}

func TestTotalMissesAccumulatesAcrossTransitions(t *testing.T) {
	c := New()
	c.Observe(1) // Uninit -> Mono: a cold miss against an empty cache
	if c.TotalMisses() != 1 {
		t.Errorf("expected 1 miss after the first observation, got %d", c.TotalMisses())
	}
	c.Observe(2) // Mono -> Poly, 1 miss
	c.Observe(3) // Poly, 1 miss
	c.Observe(4) // Poly (now at the 4-entry cap), 1 miss
	c.Observe(5) // cap exceeded, pushes to Megamorphic, 1 miss
	c.Observe(6) // already Megamorphic, 1 miss
	if c.TotalMisses() != 6 {
		t.Errorf("expected 6 accumulated misses, got %d", c.TotalMisses())
	}
	c.Observe(7) // already Megamorphic, still counts as a miss
	if c.TotalMisses() != 7 {
		t.Errorf("expected misses to keep accumulating once Megamorphic, got %d", c.TotalMisses())
	}
}

// TestTotalHitsSurvivesMegamorphicWipe is the regression test for the
// missing TotalHits counterpart: a hit recorded against an entry dropped
// on the Megamorphic transition must still be reflected in the running
// total, the same way TotalMisses already survives that wipe.
func TestTotalHitsSurvivesMegamorphicWipe(t *testing.T) {
	c := New()
	c.Observe(1)
	c.Lookup(1) // a genuine hit before the cache ever goes polymorphic
	if c.TotalHits() != 1 {
		t.Fatalf("expected 1 hit, got %d", c.TotalHits())
	}

	for _, shape := range []uint64{2, 3, 4, 5} {
		c.Observe(shape) // pushes through Polymorphic into Megamorphic, wiping entries
	}
	if c.State() != Megamorphic {
		t.Fatalf("expected Megamorphic, got %s", c.State())
	}
	if c.TotalHits() != 1 {
		t.Errorf("expected the earlier hit to survive the Megamorphic wipe, got %d", c.TotalHits())
	}
}

// TestTotalLookupsEqualsHitsPlusMisses verifies spec.md §8's testable
// property "hits + misses == total_lookups for every site": every Lookup
// call, whether issued directly or via Observe's internal check, advances
// exactly one of the two running totals.
func TestTotalLookupsEqualsHitsPlusMisses(t *testing.T) {
	c := New()
	c.Observe(1)
	c.Lookup(1)  // hit
	c.Lookup(99) // miss
	c.Observe(2)
	c.Observe(3)
	c.Observe(4)
	c.Observe(5) // pushes to Megamorphic
	c.Observe(6) // Megamorphic miss
	c.Lookup(1)  // Megamorphic always misses

	if got := c.TotalHits() + c.TotalMisses(); got != c.TotalLookups() {
		t.Errorf("TotalHits()+TotalMisses() = %d, want TotalLookups() = %d", got, c.TotalLookups())
	}
}
