// internal/api/v2/system.go
package api

import (
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// SystemInfo represents basic system information
type SystemInfo struct {
	OS            string    `json:"os"`
	Architecture  string    `json:"architecture"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	PlatformVer   string    `json:"platform_version"`
	KernelVersion string    `json:"kernel_version"`
	UpTime        uint64    `json:"uptime_seconds"`
	BootTime      time.Time `json:"boot_time"`
	AppStart      time.Time `json:"app_start_time"`
	AppUptime     int64     `json:"app_uptime_seconds"`
	NumCPU        int       `json:"num_cpu"`
	GoVersion     string    `json:"go_version"`
}

// ResourceInfo represents system resource usage data
type ResourceInfo struct {
	CPUUsage    float64 `json:"cpu_usage_percent"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryFree  uint64  `json:"memory_free"`
	MemoryUsage float64 `json:"memory_usage_percent"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapUsage   float64 `json:"swap_usage_percent"`
	ProcessMem  float64 `json:"process_memory_mb"`
	ProcessCPU  float64 `json:"process_cpu_percent"`
}

// DiskInfo represents information about a disk
type DiskInfo struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	UsagePerc  float64 `json:"usage_percent"`
}

// virtualFilesystems lists filesystem types excluded from disk reports.
var virtualFilesystems = map[string]struct{}{
	"sysfs": {}, "procfs": {}, "devfs": {}, "devtmpfs": {}, "debugfs": {},
	"securityfs": {}, "tmpfs": {}, "ramfs": {}, "devpts": {}, "hugetlbfs": {},
	"mqueue": {}, "pstore": {}, "binfmt_misc": {}, "overlay": {}, "squashfs": {},
}

// initSystemRoutes registers the host inspection endpoints.
func (c *Controller) initSystemRoutes() {
	systemGroup := c.Group.Group("/system")

	systemGroup.GET("/info", c.GetSystemInfo)
	systemGroup.GET("/resources", c.GetResourceInfo)
	systemGroup.GET("/disks", c.GetDiskInfo)
}

// GetSystemInfo handles GET /api/v2/system/info
func (c *Controller) GetSystemInfo(ctx echo.Context) error {
	hostInfo, err := host.Info()
	if err != nil {
		return c.HandleError(ctx, systemError(err, "host_info"), "Failed to get host information")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := SystemInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		Hostname:      hostname,
		Platform:      hostInfo.Platform,
		PlatformVer:   hostInfo.PlatformVersion,
		KernelVersion: hostInfo.KernelVersion,
		UpTime:        hostInfo.Uptime,
		BootTime:      time.Unix(int64(hostInfo.BootTime), 0), //nolint:gosec // G115: boot time fits in int64 until year 292277026596
		NumCPU:        runtime.NumCPU(),
		GoVersion:     runtime.Version(),
	}
	if c.startTime != nil {
		info.AppStart = *c.startTime
		info.AppUptime = int64(time.Since(*c.startTime).Seconds())
	}

	return ctx.JSON(http.StatusOK, info)
}

// GetResourceInfo handles GET /api/v2/system/resources
func (c *Controller) GetResourceInfo(ctx echo.Context) error {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return c.HandleError(ctx, systemError(err, "memory"), "Failed to get memory information")
	}

	swapInfo, err := mem.SwapMemory()
	if err != nil {
		return c.HandleError(ctx, systemError(err, "swap"), "Failed to get swap information")
	}

	// Average over all cores, sampled for one second
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		return c.HandleError(ctx, systemError(err, "cpu"), "Failed to get CPU information")
	}

	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PIDs fit in int32 on supported platforms
	if err != nil {
		return c.HandleError(ctx, systemError(err, "process"), "Failed to get process information")
	}

	procMem, _ := proc.MemoryInfo()
	procCPU, _ := proc.CPUPercent()

	var procMemMB float64
	if procMem != nil {
		procMemMB = float64(procMem.RSS) / 1024 / 1024
	}

	resourceInfo := ResourceInfo{
		MemoryTotal: memInfo.Total,
		MemoryUsed:  memInfo.Used,
		MemoryFree:  memInfo.Free,
		MemoryUsage: memInfo.UsedPercent,
		SwapTotal:   swapInfo.Total,
		SwapUsed:    swapInfo.Used,
		SwapUsage:   swapInfo.UsedPercent,
		ProcessMem:  procMemMB,
		ProcessCPU:  procCPU,
	}
	if len(cpuPercent) > 0 {
		resourceInfo.CPUUsage = cpuPercent[0]
	}

	return ctx.JSON(http.StatusOK, resourceInfo)
}

// GetDiskInfo handles GET /api/v2/system/disks
func (c *Controller) GetDiskInfo(ctx echo.Context) error {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return c.HandleError(ctx, systemError(err, "partitions"), "Failed to get disk partitions")
	}

	disks := []DiskInfo{}
	for _, partition := range partitions {
		if skipFilesystem(partition.Fstype) {
			continue
		}

		usage, err := disk.Usage(partition.Mountpoint)
		if err != nil {
			c.Debug("Failed to get usage for %s: %v", partition.Mountpoint, err)
			continue
		}

		disks = append(disks, DiskInfo{
			Device:     partition.Device,
			Mountpoint: partition.Mountpoint,
			Fstype:     partition.Fstype,
			Total:      usage.Total,
			Used:       usage.Used,
			Free:       usage.Free,
			UsagePerc:  usage.UsedPercent,
		})
	}

	return ctx.JSON(http.StatusOK, disks)
}

// skipFilesystem reports whether a filesystem type is virtual and should
// not appear in disk reports.
func skipFilesystem(fstype string) bool {
	if _, ok := virtualFilesystems[fstype]; ok {
		return true
	}

	for _, prefix := range []string{"fuse", "cgroup", "proc", "sys", "dev"} {
		if strings.HasPrefix(fstype, prefix) {
			return true
		}
	}
	return false
}

func systemError(err error, probe string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategorySystem).
		Context("operation", "system_probe").
		Context("probe", probe).
		Build()
}
