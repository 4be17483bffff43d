package handler

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"leviathan/internal/logger"
)

// 统计信息
type counters struct {
	messages atomic.Int64
	commands atomic.Int64
	actions  atomic.Int64
	errors   atomic.Int64
	timeouts atomic.Int64
	dropped  atomic.Int64
}

var startTime = time.Now()

// ProcessingStats is a point-in-time view of the pipeline.
type ProcessingStats struct {
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Messages       int64  `json:"total_messages"`
	Commands       int64  `json:"total_commands"`
	AutomodActions int64  `json:"total_automod_actions"`
	Errors         int64  `json:"total_errors"`
	Timeouts       int64  `json:"total_timeouts"`
	Dropped        int64  `json:"total_dropped"`
	ActiveHandlers int64  `json:"active_handlers"`
	MaxConcurrent  int    `json:"max_concurrent_messages"`
	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	SysMemoryMB    uint64 `json:"sys_memory_mb"`
	GCRuns         uint32 `json:"gc_runs"`
	Goroutines     int    `json:"goroutines"`
}

// Stats 获取处理统计信息
func (h *Handler) Stats() ProcessingStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ProcessingStats{
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Messages:       h.stats.messages.Load(),
		Commands:       h.stats.commands.Load(),
		AutomodActions: h.stats.actions.Load(),
		Errors:         h.stats.errors.Load(),
		Timeouts:       h.stats.timeouts.Load(),
		Dropped:        h.stats.dropped.Load(),
		ActiveHandlers: h.active.Load(),
		MaxConcurrent:  cap(h.sem),
		MemoryUsageMB:  bToMb(m.Alloc),
		SysMemoryMB:    bToMb(m.Sys),
		GCRuns:         m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}
}

// StartStatusMonitoring 定期记录处理统计信息
func (h *Handler) StartStatusMonitoring(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			stats := h.Stats()
			logger.Infof("Processing stats: %+v", stats)
			logger.Debugf("%s", h.DetailedStatus())

			// 如果活跃处理器数量过多，记录警告
			if stats.ActiveHandlers > int64(stats.MaxConcurrent)*8/10 {
				logger.Warningf("High number of active handlers: %d/%d", stats.ActiveHandlers, stats.MaxConcurrent)
			}

			// 如果错误率过高，记录警告
			if stats.Messages > 0 && float64(stats.Errors)/float64(stats.Messages) > 0.1 {
				logger.Warningf("High error rate: %.2f%% (%d errors out of %d messages)",
					float64(stats.Errors)/float64(stats.Messages)*100, stats.Errors, stats.Messages)
			}
		}
	}()
}

// bToMb 将字节转换为MB
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// DetailedStatus 获取详细状态信息（用于调试）
func (h *Handler) DetailedStatus() string {
	s := h.Stats()
	return fmt.Sprintf(`
=== Leviathan Processing Status ===
Uptime: %d seconds
Messages Processed: %d
Commands: %d
Automod Actions: %d
Errors: %d
Timeouts: %d
Dropped: %d
Active Handlers: %d/%d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
===================================`,
		s.UptimeSeconds, s.Messages, s.Commands, s.AutomodActions, s.Errors, s.Timeouts, s.Dropped,
		s.ActiveHandlers, s.MaxConcurrent, s.MemoryUsageMB, s.SysMemoryMB, s.GCRuns, s.Goroutines)
}
