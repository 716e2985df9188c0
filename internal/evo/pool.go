package evo

import (
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// seedStride spaces worker seeds apart.
const seedStride = 7919

// pool runs per-index work on a fixed set of workers. Indices are split
// into contiguous chunks and chunk w always runs on worker w with its own
// random source, so a run is reproducible for a given seed and worker
// count regardless of scheduling.
type pool struct {
	rngs []*rand.Rand
}

func newPool(workers int, seed int64) *pool {
	p := &pool{rngs: make([]*rand.Rand, max(workers, 1))}
	for w := range p.rngs {
		p.rngs[w] = rand.New(rand.NewSource(seed + int64(w)*seedStride))
	}
	return p
}

func (p *pool) workers() int {
	return len(p.rngs)
}

// run calls fn for every index in [0, n) and returns once all workers are
// done. The first error is returned.
func (p *pool) run(n int, fn func(w int, rng *rand.Rand, i int) error) error {
	workers := p.workers()
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		if lo >= hi {
			break
		}
		rng := p.rngs[w]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := fn(w, rng, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
