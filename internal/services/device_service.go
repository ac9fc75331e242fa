// Package services joins the reference tables into per-device dashboard
// payloads.
package services

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bmeutil/internal/cache"
	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/timeline"
)

var hundred = decimal.NewFromInt(100)

// Lookups provides the shared reference set.
type Lookups interface {
	Get(ctx context.Context) (*core.ReferenceSet, error)
	Loaded() bool
	Clear()
}

// DeviceService builds and memoizes device responses.
type DeviceService struct {
	lookups       Lookups
	results       cache.Memo[*core.DeviceResponse]
	timeline      *timeline.Builder
	fallbackRatio decimal.Decimal
	logger        *applog.Logger
	metrics       *metrics.Metrics
}

type Option func(*DeviceService)

func WithFallbackRatio(ratio decimal.Decimal) Option {
	return func(s *DeviceService) { s.fallbackRatio = ratio }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *DeviceService) { s.logger = logger.WithComponent(applog.ComponentDevice) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DeviceService) { s.metrics = m }
}

func NewDeviceService(
	lookups Lookups,
	results cache.Memo[*core.DeviceResponse],
	builder *timeline.Builder,
	opts ...Option,
) *DeviceService {
	s := &DeviceService{
		lookups:       lookups,
		results:       results,
		timeline:      builder,
		fallbackRatio: DefaultCostFallbackRatio,
		logger:        applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitialEquipmentMap returns every valid device keyed by AE title.
func (s *DeviceService) InitialEquipmentMap(ctx context.Context) (map[string]core.Equipment, error) {
	refs, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(refs.Equipment), nil
}

// BuildDeviceResponse returns the dashboard payload for one device. The
// first successful build per AE title is cached and returned unchanged by
// later calls until Reload.
func (s *DeviceService) BuildDeviceResponse(ctx context.Context, aeTitle string) (*core.DeviceResponse, error) {
	id := core.NormalizeID(aeTitle)
	if id == "" {
		return nil, core.Invalidf("AE title is required")
	}

	resp, hit, err := s.results.GetOrBuild(id, func() (*core.DeviceResponse, error) {
		resp, err := s.aggregate(ctx, id)
		s.metrics.Aggregated(err)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Device response served",
		applog.FieldAETitle, id,
		applog.FieldCacheHit, hit,
		applog.FieldTimelineLen, len(resp.AllUniqueDates),
		applog.FieldRows, len(resp.PACSDataDetails),
	)
	return resp, nil
}

func (s *DeviceService) aggregate(ctx context.Context, id string) (*core.DeviceResponse, error) {
	refs, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	eq, ok := refs.Equipment[id]
	if !ok {
		return nil, core.NotFoundf("equipment %q", id)
	}
	s.logger.InfoContext(ctx, "Aggregating device",
		applog.NewFields().WithOperation(applog.OpAggregate).WithDevice(id, eq.OrderNum).ToSlice()...,
	)

	var anchors []time.Time

	sapMap, expenseDates := s.expenses(refs, eq.OrderNum)
	anchors = append(anchors, expenseDates...)

	rows, procedureMonths := s.procedures(refs, id)
	anchors = append(anchors, procedureMonths...)

	if eq.InstallDate != nil {
		anchors = append(anchors, eq.InstallDate.Time)
	}

	months, err := s.timeline.Build(anchors)
	if err != nil {
		return nil, core.Internal("build timeline", err)
	}

	return &core.DeviceResponse{
		SAPMap:          sapMap,
		PACSDataDetails: rows,
		AllUniqueDates:  timeline.Format(months),
		TodayStr:        s.timeline.Today().Format(core.DateLayout),
		DeviceInfo:      eq.Info(),
	}, nil
}

func (s *DeviceService) reference(ctx context.Context) (*core.ReferenceSet, error) {
	refs, err := s.lookups.Get(ctx)
	if err != nil {
		return nil, core.Internal("read reference set", err)
	}
	return refs, nil
}

// expenses sums non-zero ledger postings of the order per month, keyed
// "{orderNum}-{YYYY-MM}". Each contributing posting date is returned as an
// anchor.
func (s *DeviceService) expenses(refs *core.ReferenceSet, orderNum string) (map[string]float64, []time.Time) {
	out := map[string]float64{}
	if orderNum == "" {
		return out, nil
	}

	sums := map[string]decimal.Decimal{}
	var dates []time.Time
	for _, e := range refs.Ledger[orderNum] {
		if e.Amount.IsZero() {
			continue
		}
		key := ExpenseKey(orderNum, core.YearMonth(e.PostingDate))
		sums[key] = sums[key].Add(e.Amount)
		dates = append(dates, e.PostingDate)
	}
	for k, v := range sums {
		out[k] = v.InexactFloat64()
	}
	return out, dates
}

// procedures prices every monthly procedure fact of the device. The first
// day of every month with activity is returned as an anchor.
func (s *DeviceService) procedures(refs *core.ReferenceSet, id string) ([]core.RowRecord, []time.Time) {
	facts := refs.Procedures[id]
	rows := make([]core.RowRecord, 0, len(facts))
	var months []time.Time

	for _, f := range facts {
		month, ok := core.ParseYearMonth(f.YearMonth)
		if !ok {
			continue
		}
		months = append(months, month)

		price := refs.Prices[f.Code]
		cost := ResolveUnitCost(price, refs.Costs[f.Code], s.fallbackRatio)

		revenueRaw := f.Quantity.Mul(price)
		costTotal := f.Quantity.Mul(cost)
		profit := costTotal.Sub(revenueRaw)
		revenuePL := price.Sub(cost).Mul(f.Quantity)
		margin := decimal.Zero
		if revenueRaw.IsPositive() {
			margin = profit.Div(revenueRaw).Mul(hundred)
		}

		name := refs.Names[f.Code]
		if name == "" {
			name = f.Code
		}

		rows = append(rows, core.RowRecord{
			AETitle:     id,
			YearMonth:   f.YearMonth,
			ServiceCode: f.Code,
			ServiceName: name,
			OrderQty:    f.Quantity.InexactFloat64(),
			UnitPrice:   price.InexactFloat64(),
			UnitCost:    cost.InexactFloat64(),
			RevenueRaw:  revenueRaw.InexactFloat64(),
			CostTotal:   costTotal.InexactFloat64(),
			Profit:      profit.InexactFloat64(),
			RevenuePL:   revenuePL.InexactFloat64(),
			MarginPct:   margin.InexactFloat64(),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].YearMonth != rows[j].YearMonth {
			return rows[i].YearMonth < rows[j].YearMonth
		}
		return rows[i].ServiceCode < rows[j].ServiceCode
	})
	return rows, months
}

// Reload drops both caches and reads the reference tables again. When the
// reload fails the caches stay empty and the next request retries.
func (s *DeviceService) Reload(ctx context.Context) error {
	s.lookups.Clear()
	dropped := s.results.Size()
	s.results.Clear()

	if _, err := s.lookups.Get(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Reload failed",
			applog.NewFields().WithOperation(applog.OpReload).WithError(err, applog.ErrorTypeLoad).ToSlice()...,
		)
		return err
	}
	s.logger.InfoContext(ctx, "Reference data reloaded",
		applog.FieldOperation, applog.OpReload,
		"dropped_results", dropped,
	)
	return nil
}

// Preload warms the lookup cache.
func (s *DeviceService) Preload(ctx context.Context) error {
	_, err := s.lookups.Get(ctx)
	return err
}

// Ready reports whether the reference set is in memory.
func (s *DeviceService) Ready() bool {
	return s.lookups.Loaded()
}
