package resource

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// SystemProbe reads available memory from the operating system.
type SystemProbe struct{}

func (SystemProbe) AvailableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return vm.Available, nil
}

// ProcessRSS returns the resident set size of the current process in bytes.
func ProcessRSS(ctx context.Context) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}

// SystemInfo is a point-in-time view of the host logged at startup.
type SystemInfo struct {
	CPUs              int     `json:"cpus"`
	TotalMemoryGB     float64 `json:"total_memory_gb"`
	AvailableMemoryGB float64 `json:"available_memory_gb"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	DiskFreeGB        float64 `json:"disk_free_gb"`
	GoVersion         string  `json:"go_version"`
}

// Snapshot gathers SystemInfo. dir selects the filesystem whose free space
// is reported. Fields that cannot be read are left zero; the error reports
// the first failure.
func Snapshot(ctx context.Context, dir string) (SystemInfo, error) {
	info := SystemInfo{GoVersion: runtime.Version()}
	var firstErr error

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUs = n
	} else {
		info.CPUs = runtime.NumCPU()
		firstErr = err
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemoryGB = round2(float64(vm.Total) / bytesPerGB)
		info.AvailableMemoryGB = round2(float64(vm.Available) / bytesPerGB)
		info.MemoryUsedPercent = round2(vm.UsedPercent)
	} else if firstErr == nil {
		firstErr = err
	}

	if dir == "" {
		dir = "."
	}
	if du, err := disk.UsageWithContext(ctx, dir); err == nil {
		info.DiskFreeGB = round2(float64(du.Free) / bytesPerGB)
	} else if firstErr == nil {
		firstErr = err
	}

	return info, firstErr
}
