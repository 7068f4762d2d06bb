// Package jit ties the tiers together: it profiles function
// invocations, translates hot functions to optimized chunks on a
// background worker, installs the finished chunks atomically, and tears
// them down again when a primitive they depend on changes.
package jit

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/stylpe/Avail-sub004/l1"
	"github.com/stylpe/Avail-sub004/l2"
	"github.com/stylpe/Avail-sub004/primitive"
	"github.com/stylpe/Avail-sub004/types"
)

// Optimizer manages adaptive optimization of hot functions. It connects
// the profiler (which detects hot code) to the level-two translator
// (which produces chunks) and owns the installed-chunk registry.
//
// Installation and invalidation are atomic with respect to invokers: a
// call that picked up a chunk before invalidation runs it to completion;
// later calls observe the invalid flag and fall back.
type Optimizer struct {
	cfg      Config
	profiler *Profiler
	store    *Store
	log      commonlog.Logger

	// Background translation queue.
	pending chan *l1.Function
	done    chan struct{}

	mu         sync.RWMutex
	chunks     map[*l1.Function]*l2.Chunk
	queued     map[*l1.Function]bool
	contingent map[string][]*l1.Function // primitive name -> dependent functions

	// Statistics.
	compiled    uint64
	failed      uint64
	invalidated uint64
	deoptimized uint64
}

// NewOptimizer creates an optimizer and starts its background worker.
// Callers must Stop it when done.
func NewOptimizer(cfg Config) (*Optimizer, error) {
	o := &Optimizer{
		cfg:        cfg,
		profiler:   NewProfiler(),
		log:        commonlog.GetLogger("jit"),
		pending:    make(chan *l1.Function, cfg.QueueSize),
		done:       make(chan struct{}),
		chunks:     make(map[*l1.Function]*l2.Chunk),
		queued:     make(map[*l1.Function]bool),
		contingent: make(map[string][]*l1.Function),
	}
	o.profiler.HotThreshold = cfg.HotThreshold

	if cfg.StorePath != "" {
		store, err := OpenStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		o.store = store
	}

	o.profiler.OnHot = func(fn *l1.Function, _ *FunctionProfile) {
		o.queue(fn)
	}

	go o.worker()
	return o, nil
}

// Profiler exposes the optimizer's profiler for inspection.
func (o *Optimizer) Profiler() *Profiler { return o.profiler }

// Invoke runs a function through the tiered execution model: the
// installed chunk when one is valid, the unoptimized tier otherwise.
// Every invocation is profiled.
func (o *Optimizer) Invoke(fn *l1.Function, args, outers []types.Value) (types.Value, error) {
	if o.cfg.Enabled {
		o.profiler.RecordInvocation(fn)
	}

	chunk := o.ChunkFor(fn)
	if chunk == nil && o.cfg.Enabled && o.profiler.IsHot(fn) {
		// Re-queue functions whose chunk was invalidated; the profiler
		// fires OnHot only once.
		o.queue(fn)
	}
	if chunk != nil {
		result, err := chunk.Run(args, outers)
		if err == nil || primitive.IsFailure(err) {
			return result, err
		}
		// An internal fault in optimized code deoptimizes the function
		// and retries in the unoptimized tier.
		o.log.Errorf("chunk for %s faulted, deoptimizing: %v", fn.Name, err)
		o.uninstall(fn)
		atomic.AddUint64(&o.deoptimized, 1)
	}

	return l1.Invoke(fn, args, outers)
}

// ChunkFor returns the installed, still-valid chunk for a function, or
// nil.
func (o *Optimizer) ChunkFor(fn *l1.Function) *l2.Chunk {
	o.mu.RLock()
	chunk := o.chunks[fn]
	o.mu.RUnlock()
	if chunk == nil || !chunk.Valid() {
		return nil
	}
	return chunk
}

// queue submits a function for background translation. A full queue
// drops the request; the function stays hot and is not re-queued, which
// matches the profiler firing OnHot once.
func (o *Optimizer) queue(fn *l1.Function) {
	if !o.cfg.Enabled {
		return
	}
	o.mu.Lock()
	if o.queued[fn] {
		o.mu.Unlock()
		return
	}
	o.queued[fn] = true
	o.mu.Unlock()

	select {
	case o.pending <- fn:
	default:
		o.log.Warningf("optimization queue full, skipping %s", fn.Name)
	}
}

// worker drains the translation queue until Stop.
func (o *Optimizer) worker() {
	for {
		select {
		case fn := <-o.pending:
			o.optimize(fn)
		case <-o.done:
			return
		}
	}
}

// optimize translates one function and installs the resulting chunk. A
// failed translation is terminal for this function: it keeps running in
// the unoptimized tier.
func (o *Optimizer) optimize(fn *l1.Function) {
	chunk, err := l2.Translate(fn)
	if err != nil {
		atomic.AddUint64(&o.failed, 1)
		o.log.Warningf("optimization of %s failed: %v", fn.Name, err)
		return
	}

	o.install(fn, chunk)
	atomic.AddUint64(&o.compiled, 1)

	if o.cfg.LogCompilation {
		o.log.Infof("optimized %s: %d instructions, %d/%d/%d registers",
			fn.Name, len(chunk.Instructions),
			chunk.ObjectRegisterCount, chunk.IntRegisterCount, chunk.FloatRegisterCount)
	}

	if o.store != nil {
		if err := o.store.SaveFunction(fn); err != nil {
			o.log.Errorf("persisting %s: %v", fn.Name, err)
		} else if err := o.store.RecordCompilation(fn, chunk); err != nil {
			o.log.Errorf("recording compilation of %s: %v", fn.Name, err)
		}
	}
}

// install publishes a chunk and indexes its contingencies.
func (o *Optimizer) install(fn *l1.Function, chunk *l2.Chunk) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunks[fn] = chunk
	for _, name := range chunk.ContingentValues {
		o.contingent[name] = append(o.contingent[name], fn)
	}
}

// uninstall removes a function's chunk, leaving in-flight runs alone.
func (o *Optimizer) uninstall(fn *l1.Function) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if chunk, ok := o.chunks[fn]; ok {
		chunk.Invalidate()
		delete(o.chunks, fn)
	}
}

// Invalidate tears down every chunk contingent on the named primitive.
// Calls already running those chunks finish undisturbed; subsequent
// calls fall back to the unoptimized tier until re-optimization.
func (o *Optimizer) Invalidate(name string) int {
	o.mu.Lock()
	dependents := o.contingent[name]
	delete(o.contingent, name)
	n := 0
	for _, fn := range dependents {
		if chunk, ok := o.chunks[fn]; ok {
			chunk.Invalidate()
			delete(o.chunks, fn)
			// Allow the function to become hot and be optimized again.
			delete(o.queued, fn)
			n++
		}
	}
	o.mu.Unlock()

	if n > 0 {
		atomic.AddUint64(&o.invalidated, uint64(n))
		o.log.Infof("invalidated %d chunk(s) contingent on %q", n, name)
	}
	return n
}

// OptimizerStats holds optimizer statistics.
type OptimizerStats struct {
	Compiled    uint64
	Failed      uint64
	Invalidated uint64
	Deoptimized uint64
	Installed   int
	QueueLength int
}

// Stats returns a snapshot of the optimizer's counters.
func (o *Optimizer) Stats() OptimizerStats {
	o.mu.RLock()
	installed := len(o.chunks)
	o.mu.RUnlock()
	return OptimizerStats{
		Compiled:    atomic.LoadUint64(&o.compiled),
		Failed:      atomic.LoadUint64(&o.failed),
		Invalidated: atomic.LoadUint64(&o.invalidated),
		Deoptimized: atomic.LoadUint64(&o.deoptimized),
		Installed:   installed,
		QueueLength: len(o.pending),
	}
}

// Stop shuts down the background worker and closes the store.
func (o *Optimizer) Stop() {
	close(o.done)
	if o.store != nil {
		if err := o.store.Close(); err != nil {
			o.log.Errorf("closing store: %v", err)
		}
	}
}
