// Package reference turns the raw reference tables into the typed, keyed
// structures the device aggregator joins against.
package reference

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/sources"
)

// Table names used in logs, metrics and LoadError.Source.
const (
	TableEquipment  = "equipment"
	TableServices   = "services"
	TableCosts      = "costs"
	TableLedger     = "ledger"
	TableProcedures = "procedures"
)

type Loader struct {
	src     sources.Source
	timeout time.Duration
	logger  *applog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Loader)

// WithTimeout bounds the whole load; zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

func WithLogger(logger *applog.Logger) Option {
	return func(l *Loader) { l.logger = logger.WithComponent(applog.ComponentLoader) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

func NewLoader(src sources.Source, opts ...Option) *Loader {
	l := &Loader{
		src:    src,
		logger: applog.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads all reference tables concurrently. Equipment, ledger and
// procedure tables are required: failure to read any of them returns a fatal
// *core.LoadError. Service and cost tables degrade to empty references.
func (l *Loader) Load(ctx context.Context) (*core.ReferenceSet, error) {
	start := l.now()
	set, err := l.load(ctx)
	l.metrics.ObserveLoad(time.Since(start).Seconds(), err)
	if err != nil {
		l.logger.ErrorContext(ctx, "Reference load failed",
			applog.NewFields().WithOperation(applog.OpLoad).WithError(err, applog.ErrorTypeLoad).ToSlice()...)
		return nil, err
	}
	l.logger.InfoContext(ctx, "Reference tables loaded",
		"equipment", len(set.Equipment),
		"prices", len(set.Prices),
		"costs", len(set.Costs),
		"orders", len(set.Ledger),
		"devices_with_procedures", len(set.Procedures),
		"elapsed_ms", time.Since(start).Milliseconds())
	return set, nil
}

func (l *Loader) load(ctx context.Context) (*core.ReferenceSet, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	set := &core.ReferenceSet{LoadedAt: l.now()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := l.src.ReadEquipment(gctx)
		if err != nil {
			return &core.LoadError{Source: TableEquipment, Fatal: true, Err: err}
		}
		var dropped int
		set.Equipment, dropped = BuildEquipment(rows)
		l.logTable(gctx, TableEquipment, len(rows), dropped)
		return nil
	})
	g.Go(func() error {
		rows, err := l.src.ReadLedger(gctx)
		if err != nil {
			return &core.LoadError{Source: TableLedger, Fatal: true, Err: err}
		}
		var dropped int
		set.Ledger, dropped = BuildLedger(rows)
		l.logTable(gctx, TableLedger, len(rows), dropped)
		return nil
	})
	g.Go(func() error {
		rows, err := l.src.ReadProcedures(gctx)
		if err != nil {
			return &core.LoadError{Source: TableProcedures, Fatal: true, Err: err}
		}
		var dropped int
		set.Procedures, dropped = BuildProcedures(rows)
		l.logTable(gctx, TableProcedures, len(rows), dropped)
		return nil
	})
	g.Go(func() error {
		rows, err := l.src.ReadServices(gctx)
		if err != nil {
			l.degrade(gctx, TableServices, err)
			return nil
		}
		set.Prices, set.Names = BuildServices(rows)
		l.logTable(gctx, TableServices, len(rows), 0)
		return nil
	})
	g.Go(func() error {
		rows, err := l.src.ReadCosts(gctx)
		if err != nil {
			l.degrade(gctx, TableCosts, err)
			return nil
		}
		set.Costs = BuildCosts(rows)
		l.logTable(gctx, TableCosts, len(rows), 0)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &core.LoadError{Source: "reference", Fatal: true, Err: fmt.Errorf("load interrupted: %w", err)}
	}
	fillEmpty(set)
	return set, nil
}

func (l *Loader) degrade(ctx context.Context, table string, err error) {
	l.metrics.Degraded(table)
	warn := &core.LoadError{Source: table, Err: err}
	l.logger.WarnContext(ctx, "Reference source unavailable, continuing with empty table",
		applog.NewFields().WithOperation(applog.OpLoad).WithError(warn, applog.ErrorTypeDegraded).ToSlice()...)
}

func (l *Loader) logTable(ctx context.Context, table string, rows, dropped int) {
	l.logger.DebugContext(ctx, "Reference table read",
		applog.NewFields().WithOperation(applog.OpLoad).WithTable(table, rows, dropped).ToSlice()...)
}
