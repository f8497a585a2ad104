package dialect

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// QueryStats holds statement execution statistics.
type QueryStats struct {
	// TotalExecs is the total number of statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64

	mu      sync.Mutex
	changes Stats
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	s.mu.Lock()
	changes := s.changes
	s.mu.Unlock()
	return StatsSnapshot{
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
		Changes:       changes,
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
	s.mu.Lock()
	s.changes = Stats{}
	s.mu.Unlock()
}

func (s *QueryStats) addChanges(c Stats) {
	s.mu.Lock()
	s.changes = s.changes.Add(c)
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	// Changes is the sum of the mutation counters of all statements.
	Changes Stats
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	if s.TotalExecs == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.TotalExecs)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"execs=%d duration=%s avg=%s slow=%d errors=%d changes=[%s]",
		s.TotalExecs, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors, s.Changes,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, stmt string, params map[string]any, duration time.Duration)

// StatsDriver wraps a Driver with statement statistics collection.
type StatsDriver struct {
	Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger at warn level.
func WithSlowQueryLog(logger zerolog.Logger) StatsOption {
	return WithSlowQueryHook(func(_ context.Context, stmt string, params map[string]any, duration time.Duration) {
		logger.Warn().
			Str("component", "dialect").
			Dur("duration", duration).
			Str("stmt", stmt).
			Interface("params", params).
			Msg("slow statement detected")
	})
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	stats := dialect.NewStatsDriver(drv, dialect.WithSlowThreshold(200*time.Millisecond))
//	g := velograph.NewGraph(stats)
//	...
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error) {
	start := time.Now()
	res, err := d.Driver.Exec(ctx, stmt, params)
	d.record(ctx, stmt, params, start, res, err)
	return res, err
}

func (d *StatsDriver) record(ctx context.Context, stmt string, params map[string]any, start time.Time, res *Result, err error) {
	duration := time.Since(start)
	d.stats.TotalExecs.Add(1)
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if res != nil {
		d.stats.addChanges(res.Stats)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, stmt, params, duration)
		}
	}
}

// DebugDriver wraps a Driver with debug logging.
type DebugDriver struct {
	Driver
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// NewDebugDriver wraps a Driver with debug logging. By default statements
// are written to a discarding logger; use Debug or DebugWithLog to send
// them somewhere.
func NewDebugDriver(drv Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log:    func(context.Context, ...any) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Debug wraps drv with a DebugDriver that writes every statement to logger
// at debug level.
func Debug(drv Driver, logger zerolog.Logger) *DebugDriver {
	logger = logger.With().Str("component", "dialect").Logger()
	return NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		logger.Debug().Msg(fmt.Sprint(v...))
	}))
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error) {
	d.log(ctx, fmt.Sprintf("exec: %s params: %v", stmt, params))
	return d.Driver.Exec(ctx, stmt, params)
}

// Close closes the underlying driver and logs it.
func (d *DebugDriver) Close(ctx context.Context) error {
	d.log(ctx, "close driver")
	return d.Driver.Close(ctx)
}

var (
	_ Driver = (*StatsDriver)(nil)
	_ Driver = (*DebugDriver)(nil)
)
