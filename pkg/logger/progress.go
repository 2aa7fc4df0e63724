package logger

import (
	"fmt"
	"sync"
	"time"
)

// RowTracker reports the progress of a long table scan. It stays quiet for
// small files: a progress line appears only once the scan has been running
// longer than the configured interval since the previous line.
type RowTracker struct {
	logger   Logger
	file     string
	source   string
	total    int64
	interval time.Duration

	mu      sync.Mutex
	current int64
	started time.Time
	lastLog time.Time
}

// RowTrackerConfig configures a RowTracker.
type RowTrackerConfig struct {
	// File and Source identify the table being scanned in progress lines.
	File   string
	Source string

	// Total is the expected row count; zero suppresses percentages.
	Total int64

	// Interval is the minimum gap between progress lines. Zero means the
	// default of five seconds.
	Interval time.Duration

	Logger Logger
}

// DefaultScanInterval is the gap between progress lines when the
// configuration does not set one.
const DefaultScanInterval = 5 * time.Second

// NewRowTracker creates a tracker for one table scan.
func NewRowTracker(cfg RowTrackerConfig) *RowTracker {
	if cfg.Logger == nil {
		cfg.Logger = GetGlobalLogger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultScanInterval
	}
	now := time.Now()
	return &RowTracker{
		logger:   cfg.Logger.WithComponent("scan"),
		file:     cfg.File,
		source:   cfg.Source,
		total:    cfg.Total,
		interval: cfg.Interval,
		started:  now,
		lastLog:  now,
	}
}

// Update records that the scan has reached the given row index and logs a
// progress line when the interval has elapsed since the last one.
func (t *RowTracker) Update(row int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = row
	now := time.Now()
	if now.Sub(t.lastLog) < t.interval {
		return
	}
	t.lastLog = now

	fields := Fields{
		"file":      t.file,
		"source":    t.source,
		"processed": t.current,
		"rate":      fmt.Sprintf("%.0f rows/sec", t.rate(now)),
	}
	if t.total > 0 {
		fields["total"] = t.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(t.current)/float64(t.total)*100)
	}
	t.logger.WithFields(fields).Info("Scan progress")
}

// Done finalises the scan and returns its duration and row rate for the
// caller's completion log. The tracker itself logs nothing here so the
// caller can fold the figures into its own summary line.
func (t *RowTracker) Done(rows int64) (time.Duration, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = rows
	elapsed := time.Since(t.started)
	return elapsed, t.rate(t.started.Add(elapsed))
}

func (t *RowTracker) rate(now time.Time) float64 {
	seconds := now.Sub(t.started).Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(t.current) / seconds
}
