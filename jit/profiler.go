package jit

import (
	"sync"
	"sync/atomic"

	"github.com/stylpe/Avail-sub004/l1"
)

// FunctionProfile holds profiling data for a single function.
type FunctionProfile struct {
	InvocationCount uint64 // atomic counter for invocations
	IsHot           bool   // true once the threshold was exceeded
}

// Profiler counts function invocations to identify hot code worth
// optimizing. Profiling is per function, not per call site; a function
// crossing the threshold fires OnHot exactly once.
type Profiler struct {
	profiles sync.Map // *l1.Function -> *FunctionProfile

	// HotThreshold is the invocation count at which a function becomes
	// hot.
	HotThreshold uint64

	// OnHot is called (on the invoking goroutine) when a function first
	// crosses the threshold.
	OnHot func(fn *l1.Function, profile *FunctionProfile)

	hotCount uint64
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 100}
}

// RecordInvocation increments the invocation count for a function and
// returns true if this invocation made it hot.
func (p *Profiler) RecordInvocation(fn *l1.Function) bool {
	if fn == nil {
		return false
	}

	val, _ := p.profiles.LoadOrStore(fn, &FunctionProfile{})
	profile := val.(*FunctionProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)

	if !profile.IsHot && count >= p.HotThreshold {
		profile.IsHot = true
		atomic.AddUint64(&p.hotCount, 1)
		if p.OnHot != nil {
			p.OnHot(fn, profile)
		}
		return true
	}
	return false
}

// GetProfile returns the profile for a function, or nil if not tracked.
func (p *Profiler) GetProfile(fn *l1.Function) *FunctionProfile {
	if val, ok := p.profiles.Load(fn); ok {
		return val.(*FunctionProfile)
	}
	return nil
}

// IsHot returns true if the function has exceeded the hot threshold.
func (p *Profiler) IsHot(fn *l1.Function) bool {
	profile := p.GetProfile(fn)
	return profile != nil && profile.IsHot
}

// HotFunctions returns all functions that have crossed the threshold.
func (p *Profiler) HotFunctions() []*l1.Function {
	var hot []*l1.Function
	p.profiles.Range(func(key, value interface{}) bool {
		if value.(*FunctionProfile).IsHot {
			hot = append(hot, key.(*l1.Function))
		}
		return true
	})
	return hot
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	TotalFunctions   int
	HotFunctions     int
	TotalInvocations uint64
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.profiles.Range(func(key, value interface{}) bool {
		profile := value.(*FunctionProfile)
		stats.TotalFunctions++
		stats.TotalInvocations += atomic.LoadUint64(&profile.InvocationCount)
		if profile.IsHot {
			stats.HotFunctions++
		}
		return true
	})
	return stats
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.profiles = sync.Map{}
	atomic.StoreUint64(&p.hotCount, 0)
}
