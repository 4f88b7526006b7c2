package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker counts finished units of a long-running request, logs at an
// interval and optionally reports every change to a listener.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	failed      int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	onUpdate    func(ProgressStats)
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string              `json:"operation"`
	Total       int64               `json:"total"`
	LogInterval time.Duration       `json:"log_interval"`
	Logger      Logger              `json:"-"`
	OnUpdate    func(ProgressStats) `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 2 * time.Second
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
		onUpdate:    config.OnUpdate,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Increment records one finished unit.
func (p *ProgressTracker) Increment() {
	p.advance(false)
}

// Fail records one unit that finished with an error.
func (p *ProgressTracker) Fail() {
	p.advance(true)
}

func (p *ProgressTracker) advance(failed bool) {
	p.mutex.Lock()
	p.current++
	if failed {
		p.failed++
	}
	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(p.statsLocked(now).fields()).Info("Progress update")
		p.lastLogTime = now
	}
	stats := p.statsLocked(now)
	listener := p.onUpdate
	p.mutex.Unlock()

	if listener != nil {
		listener(stats)
	}
}

// Complete logs final statistics.
func (p *ProgressTracker) Complete() {
	stats := p.GetStats()
	p.logger.WithFields(stats.fields()).Info("Operation completed")
}

// CompleteWithError logs final statistics together with err.
func (p *ProgressTracker) CompleteWithError(err error) {
	stats := p.GetStats()
	p.logger.WithError(err).WithFields(stats.fields()).Error("Operation completed with error")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.statsLocked(time.Now())
}

func (p *ProgressTracker) statsLocked(now time.Time) ProgressStats {
	var percentage float64
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}
	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Current:    p.current,
		Failed:     p.failed,
		Percentage: percentage,
		Duration:   now.Sub(p.startTime),
	}
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Failed     int64         `json:"failed"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

func (ps ProgressStats) fields() Fields {
	fields := Fields{
		"operation": ps.Operation,
		"processed": ps.Current,
		"duration":  ps.Duration.Round(time.Millisecond).String(),
	}
	if ps.Total > 0 {
		fields["total"] = ps.Total
		fields["percentage"] = fmt.Sprintf("%.1f%%", ps.Percentage)
	}
	if ps.Failed > 0 {
		fields["failed"] = ps.Failed
	}
	return fields
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.0f%%)", ps.Operation, ps.Current, ps.Total, ps.Percentage)
	}
	return fmt.Sprintf("%s: %d processed", ps.Operation, ps.Current)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	log := logger.WithComponent("operation").WithField("operation", operation)
	start := time.Now()
	log.Debug("Starting operation")

	err := fn()

	log = log.WithField("duration", time.Since(start).Round(time.Millisecond).String())
	if err != nil {
		log.WithError(err).Warn("Operation failed")
	} else {
		log.Info("Operation completed")
	}
	return err
}
