package health

import "runtime"

const (
	memoryThresholdHealthy  = 70.0
	memoryThresholdDegraded = 85.0
)

// CheckSystem reports current process memory usage and goroutine count.
func CheckSystem() *SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h := &SystemHealth{
		Status:        StatusHealthy,
		MemoryUsedMB:  m.Alloc / 1024 / 1024,
		MemoryTotalMB: m.Sys / 1024 / 1024,
		GoRoutines:    runtime.NumGoroutine(),
	}
	if h.MemoryTotalMB > 0 {
		h.MemoryPercent = float64(h.MemoryUsedMB) / float64(h.MemoryTotalMB) * 100
	}

	switch {
	case h.MemoryPercent >= memoryThresholdDegraded:
		h.Status = StatusUnhealthy
	case h.MemoryPercent >= memoryThresholdHealthy:
		h.Status = StatusDegraded
	}
	return h
}
