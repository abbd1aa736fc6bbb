// Package pool implements the thread-safe, bi-faceted store of candidate
// solutions shared by every heuristic worker: a high-quality view ordered
// by objective and a high-diversity view ordered by Hamming distance to
// the current best, plus a subscribe/notify mechanism that lets
// consumers such as path relinking react to new arrivals.
package pool

import (
	"sort"
	"sync"

	"golang.org/x/exp/rand"
)

// Entry is one admitted candidate. Solution is immutable once stored;
// callers must never mutate the slice behind it.
type Entry struct {
	Objective uint64
	Delta     int // Hamming distance to the pool's best, recomputed whenever the best changes
	Solution  []int
}

// Config tunes the pool's admission rules.
type Config struct {
	MaxHQ             int
	MaxHD             int
	HQMinBestDelta    int
	HDMaxBestObjRatio float64
}

// DefaultConfig returns the standard pool bounds and thresholds.
func DefaultConfig() Config {
	return Config{
		MaxHQ:             50,
		MaxHD:             50,
		HQMinBestDelta:    2,
		HDMaxBestObjRatio: 1.1,
	}
}

// Pool is the shared, reader/writer-locked multiset pair. The zero value
// is not usable; construct with New.
type Pool struct {
	cfg Config

	mu   sync.RWMutex
	hq   []Entry // sorted by Objective ascending
	hd   []Entry // sorted by Delta descending
	best *Entry

	rngMu sync.Mutex
	rng   *rand.Rand

	subMu sync.Mutex
	subs  []*Subscription
}

// New builds an empty pool and seeds it with the initial solution, which
// is always admitted (it becomes the first best) so the pool is never
// empty while any heuristic is running.
func New(cfg Config, seed uint64, initialObjective uint64, initialSolution []int) *Pool {
	p := &Pool{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
	p.Push(initialObjective, initialSolution)
	return p
}

// Best returns a copy of the current best entry, or false if the pool is empty.
func (p *Pool) Best() (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.best == nil {
		return Entry{}, false
	}
	return *p.best, true
}

// WorstHQ returns the worst (highest-objective) entry in the HQ view.
func (p *Pool) WorstHQ() (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.hq) == 0 {
		return Entry{}, false
	}
	return p.hq[len(p.hq)-1], true
}

// WorstHD returns the worst (lowest-delta) entry in the HD view.
func (p *Pool) WorstHD() (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.hd) == 0 {
		return Entry{}, false
	}
	return p.hd[len(p.hd)-1], true
}

// RandomHighQuality returns a uniformly-chosen HQ entry.
func (p *Pool) RandomHighQuality() (Entry, bool) {
	return p.randomFrom(func() []Entry { return p.hq })
}

// RandomHighDiversity returns a uniformly-chosen HD entry.
func (p *Pool) RandomHighDiversity() (Entry, bool) {
	return p.randomFrom(func() []Entry { return p.hd })
}

func (p *Pool) randomFrom(view func() []Entry) (Entry, bool) {
	p.mu.RLock()
	v := view()
	if len(v) == 0 {
		p.mu.RUnlock()
		return Entry{}, false
	}
	cp := append([]Entry(nil), v...)
	p.mu.RUnlock()

	p.rngMu.Lock()
	idx := p.rng.Intn(len(cp))
	p.rngMu.Unlock()
	return cp[idx], true
}

// hamming returns the number of positions where a and b differ.
func hamming(a, b []int) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// Push offers a candidate to the pool. It returns true if the candidate
// was admitted to at least one view, in which case every subscriber
// receives one notification.
func (p *Pool) Push(objective uint64, sol []int) bool {
	p.mu.Lock()
	admitted := p.pushLocked(objective, sol)
	p.mu.Unlock()
	if admitted {
		p.notifyAll()
	}
	return admitted
}

func (p *Pool) pushLocked(objective uint64, sol []int) bool {
	solCopy := append([]int(nil), sol...)

	if p.best == nil || objective < p.best.Objective {
		newBest := Entry{Objective: objective, Delta: 0, Solution: solCopy}
		p.recomputeDeltas(newBest.Solution)
		p.best = &newBest
		p.insertHQ(newBest)
		p.insertHD(newBest)
		return true
	}

	delta := hamming(sol, p.best.Solution)
	e := Entry{Objective: objective, Delta: delta, Solution: solCopy}

	admitted := false
	if delta >= p.cfg.HQMinBestDelta {
		if len(p.hq) < p.cfg.MaxHQ || objective < p.hq[len(p.hq)-1].Objective {
			p.insertHQ(e)
			admitted = true
		}
	}
	if float64(objective) < p.cfg.HDMaxBestObjRatio*float64(p.best.Objective) {
		if len(p.hd) < p.cfg.MaxHD || delta >= p.hd[len(p.hd)-1].Delta {
			p.insertHD(e)
			admitted = true
		}
	}
	return admitted
}

func (p *Pool) recomputeDeltas(newBest []int) {
	for i := range p.hq {
		p.hq[i].Delta = hamming(p.hq[i].Solution, newBest)
	}
	for i := range p.hd {
		p.hd[i].Delta = hamming(p.hd[i].Solution, newBest)
	}
	sort.SliceStable(p.hd, func(i, j int) bool { return p.hd[i].Delta > p.hd[j].Delta })
	p.trimHD()
}

func (p *Pool) insertHQ(e Entry) {
	i := sort.Search(len(p.hq), func(i int) bool { return p.hq[i].Objective >= e.Objective })
	p.hq = append(p.hq, Entry{})
	copy(p.hq[i+1:], p.hq[i:])
	p.hq[i] = e
	p.trimHQ()
}

func (p *Pool) insertHD(e Entry) {
	i := sort.Search(len(p.hd), func(i int) bool { return p.hd[i].Delta <= e.Delta })
	p.hd = append(p.hd, Entry{})
	copy(p.hd[i+1:], p.hd[i:])
	p.hd[i] = e
	p.trimHD()
}

func (p *Pool) trimHQ() {
	if p.cfg.MaxHQ > 0 && len(p.hq) > p.cfg.MaxHQ {
		p.hq = p.hq[:p.cfg.MaxHQ]
	}
}

func (p *Pool) trimHD() {
	if p.cfg.MaxHD > 0 && len(p.hd) > p.cfg.MaxHD {
		p.hd = p.hd[:p.cfg.MaxHD]
	}
}

// Len returns the current (hqSize, hdSize) for metrics/analyze reporting.
func (p *Pool) Len() (hq, hd int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.hq), len(p.hd)
}
