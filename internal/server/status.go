package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"engageflow/internal/retry"
	"engageflow/logger"
)

// logRecord is a captured service log line.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore keeps the most recent warnings and errors. It is a logrus hook.
type logStore struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{limit: limit}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}
	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}
			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.mu.Lock()
	s.items = append(s.items, record)
	if len(s.items) > s.limit {
		s.items = append([]logRecord(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]logRecord, len(s.items))
	copy(out, s.items)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}

// resourceSnapshot is one sample of host utilisation.
type resourceSnapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryPct  float64   `json:"memory_percent"`
	MemoryUsed uint64    `json:"memory_used"`
	DiskPct    float64   `json:"disk_percent"`
}

type resourceSampler struct {
	mu       sync.RWMutex
	items    []resourceSnapshot
	limit    int
	interval time.Duration

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	log     *logger.Entry
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

func newResourceSampler(limit int, interval time.Duration, log *logger.Log) *resourceSampler {
	if limit <= 0 {
		limit = 120
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &resourceSampler{
		limit:    limit,
		interval: interval,
		log:      log.WithComponent("resource_sampler"),
	}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *resourceSampler) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

func (s *resourceSampler) snapshot() []resourceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]resourceSnapshot, len(s.items))
	copy(out, s.items)
	return out
}

func (s *resourceSampler) run(ctx context.Context) {
	for ctx.Err() == nil {
		// cpu sampling blocks for the interval
		cpuSamples, err := cpuPercentFn(ctx, s.interval)
		if err != nil {
			s.log.WithError(err).Debug("failed to sample cpu usage")
			_ = retry.Sleep(ctx, s.interval)
			continue
		}
		snap := resourceSnapshot{Timestamp: time.Now()}
		if len(cpuSamples) > 0 {
			snap.CPUPercent = cpuSamples[0]
		}
		if memStats, err := memoryStatsFn(ctx); err == nil {
			snap.MemoryPct = memStats.UsedPercent
			snap.MemoryUsed = memStats.Used
		}
		if diskStats, err := diskUsageFn(ctx, "/"); err == nil {
			snap.DiskPct = diskStats.UsedPercent
		}

		s.mu.Lock()
		s.items = append(s.items, snap)
		if len(s.items) > s.limit {
			s.items = append([]resourceSnapshot(nil), s.items[len(s.items)-s.limit:]...)
		}
		s.mu.Unlock()
	}
}
