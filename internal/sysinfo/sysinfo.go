// Package sysinfo reads host facts that bound how many pinned workers a
// batch can sensibly run.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host describes the machine a batch runs on. Fields that could not be read
// are left zero.
type Host struct {
	Hostname      string  `json:"hostname" yaml:"hostname"`
	OS            string  `json:"os" yaml:"os"`
	Platform      string  `json:"platform,omitempty" yaml:"platform,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	Architecture  string  `json:"architecture" yaml:"architecture"`
	CPUModel      string  `json:"cpu_model" yaml:"cpu_model"`
	LogicalCPUs   int     `json:"logical_cpus" yaml:"logical_cpus"`
	PhysicalCPUs  int     `json:"physical_cpus" yaml:"physical_cpus"`
	GoMaxProcs    int     `json:"gomaxprocs" yaml:"gomaxprocs"`
	MemTotal      uint64  `json:"mem_total_bytes" yaml:"mem_total_bytes"`
	MemAvailable  uint64  `json:"mem_available_bytes" yaml:"mem_available_bytes"`
	Load1         float64 `json:"load1" yaml:"load1"`
	Load5         float64 `json:"load5" yaml:"load5"`
	Load15        float64 `json:"load15" yaml:"load15"`
}

// Detect collects host information. Only a failure to count CPUs is an
// error; everything else is best effort.
func Detect(ctx context.Context) (*Host, error) {
	h := &Host{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUModel:     "Unknown",
		GoMaxProcs:   runtime.GOMAXPROCS(0),
	}

	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count CPUs: %w", err)
	}
	h.LogicalCPUs = logical

	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		h.PhysicalCPUs = physical
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		h.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.MemTotal = vm.Total
		h.MemAvailable = vm.Available
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		h.Load1, h.Load5, h.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		h.Hostname = info.Hostname
		h.Platform = info.Platform
		h.KernelVersion = info.KernelVersion
	}

	return h, nil
}

// FormatBytes formats a byte count in binary units
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
