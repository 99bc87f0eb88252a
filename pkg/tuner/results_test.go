package tuner

import "testing"

func resultFor(t *testing.T, blockX int, timeMS float64) Result {
	t.Helper()
	return Result{Config: configOf(t, "block_size_x", blockX), TimeMS: timeMS}
}

func TestResultsBestPicksMinimum(t *testing.T) {
	t.Parallel()

	r := newResults()
	r.add(resultFor(t, 32, 4.0))
	r.add(resultFor(t, 64, 2.5))
	r.add(resultFor(t, 128, 3.0))

	best, ok := r.Best()
	if !ok {
		t.Fatal("Best on a filled table returned false")
	}
	if best.Config.Instance() != "64" || best.TimeMS != 2.5 {
		t.Fatalf("best = %s (%g)", best.Config.Instance(), best.TimeMS)
	}
}

func TestResultsBestTieKeepsEarliest(t *testing.T) {
	t.Parallel()

	r := newResults()
	r.add(resultFor(t, 32, 2.0))
	r.add(resultFor(t, 64, 2.0))

	best, ok := r.Best()
	if !ok || best.Config.Instance() != "32" {
		t.Fatalf("best = %v, %v; want the earliest of the tie", best.Config.Instance(), ok)
	}
}

func TestResultsBestEmpty(t *testing.T) {
	t.Parallel()

	r := newResults()
	if _, ok := r.Best(); ok {
		t.Fatal("Best on an empty table returned true")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestResultsLookupAndOrder(t *testing.T) {
	t.Parallel()

	r := newResults()
	r.add(resultFor(t, 32, 4.0))
	r.add(resultFor(t, 64, 2.5))

	got, ok := r.Lookup("64")
	if !ok || got.TimeMS != 2.5 {
		t.Fatalf("Lookup(64) = %v, %v", got, ok)
	}
	if _, ok := r.Lookup("128"); ok {
		t.Fatal("Lookup(128) should miss")
	}

	all := r.All()
	if len(all) != 2 || all[0].Config.Instance() != "32" || all[1].Config.Instance() != "64" {
		t.Fatalf("All out of order: %v", all)
	}
}
