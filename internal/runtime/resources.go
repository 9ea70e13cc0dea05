package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	sampleCPU       = "/sched/cpu:seconds"
	sampleHeapBytes = "/memory/classes/heap/objects:bytes"
	sampleGCCycles  = "/gc/cycles/total:gc-cycles"
)

// ProcessUsage is a coarse view of the process hosting the bus, reported by
// the inspection API next to the socket table.
type ProcessUsage struct {
	CPUPercent float64 `json:"cpu_percent"`
	HeapBytes  uint64  `json:"heap_bytes"`
	GCCycles   uint64  `json:"gc_cycles"`
	Goroutines int     `json:"goroutines"`
}

// processSampler derives CPU usage from the delta between two samples; the
// first sample reports 0%.
type processSampler struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newProcessSampler() *processSampler {
	return &processSampler{
		samples: []metrics.Sample{
			{Name: sampleCPU},
			{Name: sampleHeapBytes},
			{Name: sampleGCCycles},
		},
		numCPU: float64(runtime.NumCPU()),
	}
}

func (p *processSampler) Snapshot() ProcessUsage {
	if p == nil {
		return ProcessUsage{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.Read(p.samples)
	usage := ProcessUsage{Goroutines: runtime.NumGoroutine()}
	now := time.Now()

	for _, s := range p.samples {
		switch s.Value.Kind() {
		case metrics.KindFloat64:
			if s.Name != sampleCPU {
				continue
			}
			cpu := s.Value.Float64()
			if !p.lastSample.IsZero() && p.numCPU > 0 {
				if wall := now.Sub(p.lastSample).Seconds(); wall > 0 {
					usage.CPUPercent = (cpu - p.lastCPUSeconds) / wall / p.numCPU * 100
				}
			}
			p.lastCPUSeconds = cpu
		case metrics.KindUint64:
			switch s.Name {
			case sampleHeapBytes:
				usage.HeapBytes = s.Value.Uint64()
			case sampleGCCycles:
				usage.GCCycles = s.Value.Uint64()
			}
		}
	}
	p.lastSample = now
	return usage
}
