package crawlers

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sunbid/tendercrawl/internal/utils"
)

// ResourceMonitorConfig 资源监控配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	WorkerMemoryUsage   int64 // 单个并发任务的估算内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用检查
	MaxWorkersLimit     int   // 并发任务数绝对上限
}

// ResourceMonitor 系统资源监控器
// 根据可用内存与CPU负载动态计算并发任务上限,详情解析涉及浏览器
// 页面,内存紧张时必须收缩并发
type ResourceMonitor struct {
	config      ResourceMonitorConfig
	totalMemory uint64

	// CalculateMaxWorkers的结果缓存,1秒内直接复用
	cacheMu        sync.RWMutex
	cachedWorkers  int
	lastCacheTime  time.Time
	lastCPUUsage   float64
	lastCPUSampled time.Time
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.WorkerMemoryUsage == 0 {
		config.WorkerMemoryUsage = 150 * 1024 * 1024
	}
	if config.SafetyReserveMemory == 0 {
		config.SafetyReserveMemory = 512 * 1024 * 1024
	}
	if config.MaxWorkersLimit <= 0 {
		config.MaxWorkersLimit = runtime.NumCPU()
	}

	var totalMem uint64
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		utils.Warnf("获取系统内存失败,使用默认值: %v", err)
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
	}
	utils.Infof("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))

	return &ResourceMonitor{
		config:      config,
		totalMemory: totalMem,
	}
}

// CalculateMaxWorkers 动态计算允许的并发任务数
// 基于可用内存与CPU核数取较小值,再套用配置的绝对上限,结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxWorkers() int {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedWorkers > 0 {
		cached := rm.cachedWorkers
		rm.cacheMu.RUnlock()
		return cached
	}
	rm.cacheMu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	availableMemory := int64(rm.totalMemory) - int64(memStats.Alloc) - rm.config.SafetyReserveMemory

	byMemory := 1
	if availableMemory > 0 {
		byMemory = int(availableMemory / rm.config.WorkerMemoryUsage)
		if byMemory < 1 {
			byMemory = 1
		}
	}

	result := byMemory
	if cores := runtime.NumCPU(); cores < result {
		result = cores
	}
	if rm.config.MaxWorkersLimit < result {
		result = rm.config.MaxWorkersLimit
	}

	if rm.config.CPULoadThreshold < 200 && rm.cpuUsage() > float64(rm.config.CPULoadThreshold) {
		// CPU过载时折半收缩
		result = result / 2
	}
	if result < 1 {
		result = 1
	}

	rm.cacheMu.Lock()
	rm.cachedWorkers = result
	rm.lastCacheTime = time.Now()
	rm.cacheMu.Unlock()

	return result
}

// cpuUsage 采样系统CPU使用率,采样结果缓存以免重复阻塞
func (rm *ResourceMonitor) cpuUsage() float64 {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCPUSampled) < 5*time.Second {
		usage := rm.lastCPUUsage
		rm.cacheMu.RUnlock()
		return usage
	}
	rm.cacheMu.RUnlock()

	percentages, err := cpu.Percent(100*time.Millisecond, false)
	usage := 0.0
	if err != nil {
		utils.Warnf("获取CPU使用率失败: %v", err)
	} else if len(percentages) > 0 {
		usage = percentages[0]
	}

	rm.cacheMu.Lock()
	rm.lastCPUUsage = usage
	rm.lastCPUSampled = time.Now()
	rm.cacheMu.Unlock()
	return usage
}
