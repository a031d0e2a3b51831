package job

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// ResourceUsage is a snapshot of the process footprint.
type ResourceUsage struct {
	MemoryRSS             uint64
	MemoryVMS             uint64
	CPUPercent            float64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
}

// ResourceMonitor samples the current process.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
	mu           sync.Mutex
}

// NewResourceMonitor creates a monitor for the running process. Sampling
// reports an error if the process cannot be inspected on this platform.
func NewResourceMonitor() *ResourceMonitor {
	rm := &ResourceMonitor{startTime: time.Now()}
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return rm
	}
	rm.process = proc
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm
}

// Sample returns the current resource usage.
func (rm *ResourceMonitor) Sample() (*ResourceUsage, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.process == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "process information unavailable")
	}

	usage := &ResourceUsage{GoroutineCount: runtime.NumGoroutine()}

	memInfo, err := rm.process.MemoryInfo()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
	}
	usage.MemoryRSS = memInfo.RSS
	usage.MemoryVMS = memInfo.VMS

	if cpuTime, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (cpuTime.Total() - rm.startCPUTime) / elapsed * 100
		}
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	return usage, nil
}
