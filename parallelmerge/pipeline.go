// Package parallelmerge implements a bounded producer/consumer
// queue feeding W worker Mergers, combined by a deterministic
// ascending-index tree reduce.
package parallelmerge

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aadil-01/perforator/internal/log"
	"github.com/aadil-01/perforator/internal/metrics"
	"github.com/aadil-01/perforator/merge"
	"github.com/aadil-01/perforator/perrors"
	"github.com/aadil-01/perforator/profile"
)

// Options configures a Pipeline.
type Options struct {
	MergeOptions merge.Options
	// ConcurrencyLevel is the worker count W. Values less than 1 are
	// treated as 1.
	ConcurrencyLevel uint32
	// BufferSize is the pending-queue capacity B, typically 2*W.
	// Values less than ConcurrencyLevel are raised to it.
	BufferSize uint32

	// Logger receives debug-level entries for pipeline lifecycle
	// events. Defaults to a no-op logger when nil.
	Logger log.Logger
	// Metrics, if non-nil, is updated with the pending-queue depth
	// gauge as profiles are pushed and popped.
	Metrics *metrics.Metrics
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNop()
	}
	return o.Logger
}

type lifecycle int

const (
	lifecycleOpen lifecycle = iota
	lifecycleClosed
)

// Pipeline is a running parallel merge. Construction starts all W
// workers; Add feeds the shared bounded queue; Finish drains it, runs
// the tree reduce, and returns the final profile.
//
// Because sample-value aggregation is commutative and associative,
// the output's sample values are deterministic
// regardless of worker scheduling; fixing the tree-reduce order
// (ascending worker index, left to right) additionally makes the
// assigned *ids*, and so the serialized bytes, deterministic given
// identical inputs submitted in identical order.
type Pipeline struct {
	queue chan *profile.Profile

	mu   sync.Mutex
	life lifecycle

	g       *errgroup.Group
	mergers []*merge.Merger // index = worker_index; mergers[0] writes into out

	out *profile.Profile

	finishOnce sync.Once
	finishErr  error

	opts Options
}

// New starts ConcurrencyLevel worker goroutines, each owning its own
// Merger, and returns a Pipeline in the Open state. out receives the
// final merged profile and must be empty (as returned by
// profile.New()); worker 0's Merger writes into it directly.
func New(ctx context.Context, out *profile.Profile, opts Options) *Pipeline {
	w := int(opts.ConcurrencyLevel)
	if w < 1 {
		w = 1
	}
	buf := int(opts.BufferSize)
	if buf < w {
		buf = w
	}

	p := &Pipeline{
		queue:   make(chan *profile.Profile, buf),
		out:     out,
		mergers: make([]*merge.Merger, w),
		opts:    opts,
	}
	p.mergers[0] = merge.NewInto(out, opts.MergeOptions)
	for i := 1; i < w; i++ {
		p.mergers[i] = merge.New(opts.MergeOptions)
	}

	log.Debug(opts.logger(), "msg", "pipeline starting", "workers", w, "buffer", buf)

	g, _ := errgroup.WithContext(ctx)
	p.g = g
	for i := 0; i < w; i++ {
		i := i // capture range variable
		g.Go(func() error { return p.runWorker(i) })
	}
	return p
}

func (p *Pipeline) runWorker(i int) error {
	m := p.mergers[i]
	for input := range p.queue {
		if p.opts.Metrics != nil {
			p.opts.Metrics.PipelineQueueDepth.Set(float64(len(p.queue)))
		}
		if err := m.Add(input); err != nil {
			// Keep consuming until the queue closes so producers
			// blocked on a full buffer don't deadlock; the merger is
			// poisoned and the inputs are discarded.
			for range p.queue {
			}
			return err
		}
	}
	return nil
}

// Add pushes input onto the pending queue, blocking while it is full.
// Add must not be called after Finish.
func (p *Pipeline) Add(input *profile.Profile) error {
	p.mu.Lock()
	closed := p.life == lifecycleClosed
	p.mu.Unlock()
	if closed {
		return perrors.New(perrors.Misuse, "Add called after Finish")
	}
	p.queue <- input
	if p.opts.Metrics != nil {
		p.opts.Metrics.PipelineQueueDepth.Set(float64(len(p.queue)))
	}
	return nil
}

// Finish closes the queue, awaits all workers draining it, runs the
// tree reduce, and returns the final merged output profile. Finish is
// idempotent: later calls return the same result.
func (p *Pipeline) Finish() (*profile.Profile, error) {
	p.finishOnce.Do(func() {
		p.mu.Lock()
		p.life = lifecycleClosed
		p.mu.Unlock()
		close(p.queue)
		log.Debug(p.opts.logger(), "msg", "pipeline queue closed, draining workers")

		if err := p.g.Wait(); err != nil {
			p.finishErr = err
			return
		}
		if err := p.reduce(); err != nil {
			p.finishErr = err
			return
		}
		final, err := p.mergers[0].Finish()
		if err != nil {
			p.finishErr = err
			return
		}
		p.out = final
	})
	if p.finishErr != nil {
		return nil, p.finishErr
	}
	return p.out, nil
}

// reduce is the tree-reduction stage: repeatedly
// pair adjacent still-open mergers in ascending index order, finish
// the higher-indexed one of each pair, and Add its result into the
// lower-indexed one (still open), until a single open merger, slot
// 0, remains.
func (p *Pipeline) reduce() error {
	slots := make([]int, len(p.mergers))
	for i := range slots {
		slots[i] = i
	}
	for len(slots) > 1 {
		next := make([]int, 0, (len(slots)+1)/2)
		i := 0
		for ; i+1 < len(slots); i += 2 {
			lo, hi := slots[i], slots[i+1]
			intermediate, err := p.mergers[hi].Finish()
			if err != nil {
				return err
			}
			if err := p.mergers[lo].Add(intermediate); err != nil {
				return err
			}
			next = append(next, lo)
		}
		if i < len(slots) {
			next = append(next, slots[i])
		}
		slots = next
	}
	return nil
}
