package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsCampaign int64
	errorsSpin     int64
	warnsCampaign  int64
	warnsSpin      int64
	sessionsOpen   int64
	sessionsTotal  int64
	remoteCalls    int64
)

func recordWarn(component string) {
	if strings.Contains(component, "campaign") {
		atomic.AddInt64(&warnsCampaign, 1)
	} else if strings.Contains(component, "spin") {
		atomic.AddInt64(&warnsSpin, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "campaign") {
		atomic.AddInt64(&errorsCampaign, 1)
	} else if strings.Contains(component, "spin") {
		atomic.AddInt64(&errorsSpin, 1)
	}
}

// SessionOpened and SessionClosed track live automation sessions for the report.
func SessionOpened() {
	atomic.AddInt64(&sessionsOpen, 1)
	atomic.AddInt64(&sessionsTotal, 1)
}

func SessionClosed() {
	atomic.AddInt64(&sessionsOpen, -1)
}

func IncrementRemoteCall() {
	atomic.AddInt64(&remoteCalls, 1)
}

// StartReport begins periodic logging of runtime and session statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memUsedMB := 0.0
	if memStats, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memUsedMB = float64(memStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_campaign": atomic.LoadInt64(&errorsCampaign),
		"errors_spin":     atomic.LoadInt64(&errorsSpin),
		"warns_campaign":  atomic.LoadInt64(&warnsCampaign),
		"warns_spin":      atomic.LoadInt64(&warnsSpin),
		"sessions_open":   atomic.LoadInt64(&sessionsOpen),
		"sessions_total":  atomic.LoadInt64(&sessionsTotal),
		"remote_calls":    atomic.LoadInt64(&remoteCalls),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memUsedMB),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	publishMetrics(ctx, []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memUsedMB)},
		{MetricName: aws.String("SessionsOpen"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["sessions_open"].(int64)))},
		{MetricName: aws.String("RemoteCalls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["remote_calls"].(int64)))},
		{MetricName: aws.String("ErrorsCampaign"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_campaign"].(int64)))},
		{MetricName: aws.String("ErrorsSpin"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_spin"].(int64)))},
	})
}
