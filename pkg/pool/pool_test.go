package pool

import (
	"sort"
	"testing"
)

func TestPoolBestTracksLowestObjective(t *testing.T) {
	p := New(DefaultConfig(), 1, 100, []int{0, 0, 0, 0})
	p.Push(50, []int{1, 0, 0, 0})
	best, ok := p.Best()
	if !ok || best.Objective != 50 {
		t.Fatalf("best = %+v, ok=%v, want objective 50", best, ok)
	}
}

func TestPoolHQSortedAndBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHQ = 3
	cfg.HQMinBestDelta = 0
	p := New(cfg, 1, 1000, []int{0, 0, 0, 0})
	for i, obj := range []uint64{900, 800, 700, 600, 500} {
		sol := []int{i % 2, 0, 0, 0}
		p.Push(obj, sol)
	}
	p.mu.RLock()
	hq := append([]Entry(nil), p.hq...)
	p.mu.RUnlock()
	if len(hq) > cfg.MaxHQ {
		t.Fatalf("hq size %d exceeds max %d", len(hq), cfg.MaxHQ)
	}
	if !sort.SliceIsSorted(hq, func(i, j int) bool { return hq[i].Objective < hq[j].Objective }) {
		t.Fatalf("hq not sorted ascending: %+v", hq)
	}
}

func TestSubscriptionReceivesEventsAndShutdown(t *testing.T) {
	p := New(DefaultConfig(), 1, 100, []int{0, 0})
	sub := p.Subscribe(8)
	p.Push(50, []int{1, 0})

	e, ok := sub.Wait()
	if !ok || e.Terminal {
		t.Fatalf("expected a non-terminal event, got %+v ok=%v", e, ok)
	}

	p.Shutdown()
	e, ok = sub.Wait()
	if !ok || !e.Terminal {
		t.Fatalf("expected terminal event, got %+v ok=%v", e, ok)
	}

	if _, ok := sub.Wait(); ok {
		t.Fatalf("expected no further events after shutdown")
	}
}

func TestHammingDeltaRecomputedOnNewBest(t *testing.T) {
	p := New(DefaultConfig(), 1, 1000, []int{0, 0, 0, 0})
	p.Push(900, []int{1, 1, 0, 0})
	if _, ok := p.Best(); !ok {
		t.Fatalf("expected a best entry")
	}
	p.Push(10, []int{1, 1, 1, 1})
	best, _ := p.Best()
	if best.Objective != 10 {
		t.Fatalf("best objective = %d, want 10", best.Objective)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.hq {
		if want := hamming(e.Solution, best.Solution); e.Delta != want {
			t.Fatalf("entry with objective %d has delta %d, want %d", e.Objective, e.Delta, want)
		}
	}
}
