// Package services turns FULTec data and goal records into the dashboard
// views: KPIs, breakdowns, trends, rankings and goal tracking.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
)

// Source is the backend the views are built from; *upstream.Client
// implements it.
type Source interface {
	FuelSales(ctx context.Context, r models.DateRange) ([]models.Transaction, error)
	EmployeeRanking(ctx context.Context, r models.DateRange) ([]models.RankingEntry, error)
	StoreDashboard(ctx context.Context, r models.DateRange) (models.StoreData, error)
}

// GoalSource is the read side of *goals.Service.
type GoalSource interface {
	List(ctx context.Context, view models.View) ([]goals.Goal, error)
	MonthlyTarget(ctx context.Context) (float64, error)
}

type viewStats struct {
	builds    int64
	failures  int64
	lastBuild time.Time
	lastError string
	duration  time.Duration
}

type Dashboard struct {
	source Source
	goals  GoalSource
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	stats map[models.View]*viewStats

	inFlight atomic.Int64
}

func NewDashboard(source Source, goalSource GoalSource, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		source: source,
		goals:  goalSource,
		logger: logger,
		now:    time.Now,
		stats:  make(map[models.View]*viewStats),
	}
}

// Now is the clock views are computed against.
func (d *Dashboard) Now() time.Time {
	return d.now()
}

// FuelView fetches the current and previous period concurrently. A failing
// previous period only zeroes the comparisons.
func (d *Dashboard) FuelView(ctx context.Context, r models.DateRange) (*models.FuelView, error) {
	done := d.begin(ctx, models.ViewFuel)

	var (
		cur, prev            []models.Transaction
		ranking, prevRanking []models.RankingEntry
		goalList             []goals.Goal
		prevRange            = r.Previous()
		g, gctx              = errgroup.WithContext(ctx)
	)
	g.Go(func() (err error) {
		cur, err = d.source.FuelSales(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		ranking, err = d.source.EmployeeRanking(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		goalList, err = d.goals.List(gctx, models.ViewFuel)
		return err
	})
	g.Go(func() error {
		prev = optional(gctx, d.logger, "fuel sales", prevRange, d.source.FuelSales)
		return nil
	})
	g.Go(func() error {
		prevRanking = optional(gctx, d.logger, "ranking", prevRange, d.source.EmployeeRanking)
		return nil
	})
	if err := g.Wait(); err != nil {
		done(err)
		return nil, err
	}

	categories := CategoryBreakdown(cur)
	rows, total := Performance(goalList, categories, r, d.now())
	view := &models.FuelView{
		Range:        r,
		KPIs:         FuelKPIs(cur, prev),
		Categories:   categories,
		Trend:        Trend(cur, r),
		Ranking:      WithGrowth(Rank(ranking), prevRanking),
		Performance:  rows,
		Total:        total,
		Transactions: cur,
		FetchedAt:    d.now(),
	}
	done(nil)
	return view, nil
}

// StoreView mirrors FuelView for the convenience store; its ranking is
// derived from the sales themselves.
func (d *Dashboard) StoreView(ctx context.Context, r models.DateRange) (*models.StoreView, error) {
	done := d.begin(ctx, models.ViewStore)

	var (
		cur       models.StoreData
		prev      []models.Transaction
		goalList  []goals.Goal
		prevRange = r.Previous()
		g, gctx   = errgroup.WithContext(ctx)
	)
	g.Go(func() (err error) {
		cur, err = d.source.StoreDashboard(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		goalList, err = d.goals.List(gctx, models.ViewStore)
		return err
	})
	g.Go(func() error {
		prev = optional(gctx, d.logger, "store sales", prevRange, d.source.StoreDashboard).Sales
		return nil
	})
	if err := g.Wait(); err != nil {
		done(err)
		return nil, err
	}

	categories := CategoryBreakdown(cur.Sales)
	rows, total := Performance(goalList, categories, r, d.now())
	sections, sectionsTotal := Sections(cur.Sections, cur.Sales)
	view := &models.StoreView{
		Range:         r,
		KPIs:          StoreKPIs(cur.Sales, prev),
		Categories:    categories,
		Trend:         Trend(cur.Sales, r),
		Ranking:       WithGrowth(StoreRanking(cur.Sales), StoreRanking(prev)),
		Sections:      sections,
		SectionsTotal: sectionsTotal,
		Performance:   rows,
		Total:         total,
		Transactions:  cur.Sales,
		FetchedAt:     d.now(),
	}
	done(nil)
	return view, nil
}

// Overview combines fuel and store revenue against the monthly target.
func (d *Dashboard) Overview(ctx context.Context, r models.DateRange) (*models.Overview, error) {
	done := d.begin(ctx, models.ViewOverview)

	var (
		fuel    []models.Transaction
		store   models.StoreData
		target  float64
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() (err error) {
		fuel, err = d.source.FuelSales(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		store, err = d.source.StoreDashboard(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		target, err = d.goals.MonthlyTarget(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		done(err)
		return nil, err
	}

	fuelTotal, storeTotal := totals(fuel).revenue, totals(store.Sales).revenue
	fuelRevenue, storeRevenue := money(fuelTotal), money(storeTotal)
	combined := money(fuelTotal.Add(storeTotal))
	view := &models.Overview{
		Range:         r,
		FuelRevenue:   fuelRevenue,
		StoreRevenue:  storeRevenue,
		TotalRevenue:  combined,
		MonthlyTarget: target,
		Progress:      Progress(combined, target),
		FetchedAt:     d.now(),
	}
	done(nil)
	return view, nil
}

// optional runs a comparison fetch whose failure is logged and yields the
// zero value.
func optional[T any](ctx context.Context, logger *slog.Logger, what string, r models.DateRange, fetch func(context.Context, models.DateRange) (T, error)) T {
	v, err := fetch(ctx, r)
	if err != nil {
		observability.FromContext(ctx, logger).Warn("previous period unavailable",
			"what", what,
			"range", r.String(),
			"error", err,
		)
		var zero T
		return zero
	}
	return v
}

// begin records a build of view; the returned func closes it.
func (d *Dashboard) begin(ctx context.Context, view models.View) func(error) {
	d.inFlight.Add(1)
	_, span := observability.StartSpan(ctx, "build "+string(view))
	start := time.Now()

	return func(err error) {
		d.inFlight.Add(-1)
		if err != nil {
			span.SetError(err)
		}
		span.FinishAndLog(d.logger)

		d.mu.Lock()
		defer d.mu.Unlock()
		s, ok := d.stats[view]
		if !ok {
			s = &viewStats{}
			d.stats[view] = s
		}
		s.builds++
		s.duration = time.Since(start)
		s.lastBuild = d.now()
		if err != nil {
			s.failures++
			s.lastError = err.Error()
		}
	}
}

func (d *Dashboard) Stats() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	views := make(map[string]any, len(d.stats))
	for view, s := range d.stats {
		views[string(view)] = map[string]any{
			"builds":        s.builds,
			"failures":      s.failures,
			"last_build":    s.lastBuild,
			"last_duration": s.duration.String(),
			"last_error":    s.lastError,
		}
	}
	return map[string]any{
		"in_flight": d.inFlight.Load(),
		"views":     views,
	}
}

// ParseRange reads ini/fim against the dashboard clock.
func (d *Dashboard) ParseRange(ini, fim string) (models.DateRange, error) {
	r, err := models.ParseDateRange(ini, fim, d.now())
	if err != nil {
		return models.DateRange{}, fmt.Errorf("date range: %w", err)
	}
	return r, nil
}
