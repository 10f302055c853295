package app

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"gatewaybot/internal/logger"
)

// hostStatusReport renders the owner-only /status reply: CPU load, RAM,
// and free space on the data directory's filesystem. Any metric gopsutil
// can't read is omitted rather than failing the whole report.
func hostStatusReport(ctx context.Context, dataDir string) string {
	report := "Gateway is running.\n"

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		report += fmt.Sprintf("CPU: %.1f%%\n", pct[0])
	} else if err != nil {
		logger.Warnf("status: read cpu percent: %v", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report += fmt.Sprintf("RAM: %.1f%% of %s\n", vm.UsedPercent, formatSize(int64(vm.Total)))
	} else {
		logger.Warnf("status: read virtual memory: %v", err)
	}

	if du, err := disk.UsageWithContext(ctx, dataDir); err == nil {
		report += fmt.Sprintf("Disk: %.1f%% used, %s free", du.UsedPercent, formatSize(int64(du.Free)))
	} else {
		logger.Warnf("status: read disk usage for %s: %v", dataDir, err)
	}

	return report
}
