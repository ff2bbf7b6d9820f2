package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
)

const TotalLabel = "TOTAL"

// sum accumulates money and volume without float drift.
type sum struct {
	revenue decimal.Decimal
	liters  decimal.Decimal
	units   decimal.Decimal
	count   int
}

func (s *sum) add(tx models.Transaction) {
	s.revenue = s.revenue.Add(decimal.NewFromFloat(tx.Value))
	s.liters = s.liters.Add(decimal.NewFromFloat(tx.Liters))
	s.units = s.units.Add(decimal.NewFromFloat(tx.Quantity))
	s.count++
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func volume(d decimal.Decimal) float64 {
	return d.Round(3).InexactFloat64()
}

func totals(txs []models.Transaction) sum {
	var s sum
	for _, tx := range txs {
		s.add(tx)
	}
	return s
}

// Change is the percentage change from prev to cur, 0 when prev is 0.
func Change(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

func average(total decimal.Decimal, n int) float64 {
	if n == 0 {
		return 0
	}
	return money(total.Div(decimal.NewFromInt(int64(n))))
}

func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Div(den).InexactFloat64()
}

// FuelKPIs: fueling count, liters, revenue and average ticket against the
// previous period.
func FuelKPIs(cur, prev []models.Transaction) []models.KPI {
	c, p := totals(cur), totals(prev)
	ticket, prevTicket := average(c.revenue, c.count), average(p.revenue, p.count)

	return []models.KPI{
		{Key: "abastecimentos", Title: "Abastecimentos", Value: float64(c.count), Change: Change(float64(c.count), float64(p.count)), Unit: models.UnitCount},
		{Key: "litragem", Title: "Litragem Total", Value: volume(c.liters), Change: Change(volume(c.liters), volume(p.liters)), Unit: models.UnitLiters},
		{Key: "faturamento", Title: "Faturamento", Value: money(c.revenue), Change: Change(money(c.revenue), money(p.revenue)), Unit: models.UnitMoney},
		{Key: "ticket_medio", Title: "Ticket Médio", Value: ticket, Change: Change(ticket, prevTicket), Unit: models.UnitMoney},
	}
}

// StoreKPIs: sale count, units sold, revenue and average ticket against the
// previous period.
func StoreKPIs(cur, prev []models.Transaction) []models.KPI {
	c, p := totals(cur), totals(prev)
	ticket, prevTicket := average(c.revenue, c.count), average(p.revenue, p.count)

	return []models.KPI{
		{Key: "vendas", Title: "Vendas", Value: float64(c.count), Change: Change(float64(c.count), float64(p.count)), Unit: models.UnitCount},
		{Key: "produtos", Title: "Produtos Vendidos", Value: volume(c.units), Change: Change(volume(c.units), volume(p.units)), Unit: models.UnitUnits},
		{Key: "faturamento", Title: "Faturamento", Value: money(c.revenue), Change: Change(money(c.revenue), money(p.revenue)), Unit: models.UnitMoney},
		{Key: "ticket_medio", Title: "Ticket Médio", Value: ticket, Change: Change(ticket, prevTicket), Unit: models.UnitMoney},
	}
}

// CategoryBreakdown groups txs by their mapped category, highest revenue
// first.
func CategoryBreakdown(txs []models.Transaction) []models.CategoryTotal {
	groups := make(map[string]*sum)
	for _, tx := range txs {
		g, ok := groups[tx.Category]
		if !ok {
			g = &sum{}
			groups[tx.Category] = g
		}
		g.add(tx)
	}

	out := make([]models.CategoryTotal, 0, len(groups))
	for name, g := range groups {
		out = append(out, models.CategoryTotal{
			Category: name,
			Revenue:  money(g.revenue),
			Liters:   volume(g.liters),
			Count:    g.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Trend buckets txs by hour for a single-day range and by day otherwise.
// Every bucket of the range is present; transactions outside it are
// dropped.
func Trend(txs []models.Transaction, r models.DateRange) []models.TrendPoint {
	loc := r.Start.Location()
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)

	var (
		labels []string
		index  func(t time.Time) int
	)
	if r.SingleDay() {
		labels = make([]string, 24)
		for h := range labels {
			labels[h] = fmt.Sprintf("%02d:00", h)
		}
		index = func(t time.Time) int { return t.Hour() }
	} else {
		labels = make([]string, r.Days())
		for i := range labels {
			labels[i] = start.AddDate(0, 0, i).Format("02/01")
		}
		index = func(t time.Time) int {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
			return int(day.Sub(start).Hours()/24 + 0.5)
		}
	}

	buckets := make([]sum, len(labels))
	for _, tx := range txs {
		if tx.Timestamp.IsZero() || !r.Contains(tx.Timestamp) {
			continue
		}
		if i := index(tx.Timestamp.In(loc)); i >= 0 && i < len(buckets) {
			buckets[i].add(tx)
		}
	}

	out := make([]models.TrendPoint, 0, len(labels))
	for i, l := range labels {
		out = append(out, models.TrendPoint{
			Label:   l,
			Revenue: money(buckets[i].revenue),
			Liters:  volume(buckets[i].liters),
			Count:   buckets[i].count,
		})
	}
	return out
}

// StoreRanking ranks the salespeople found in store sales by revenue.
func StoreRanking(txs []models.Transaction) []models.RankingEntry {
	groups := make(map[string]*sum)
	for _, tx := range txs {
		name := tx.Employee
		if name == "" {
			name = "Sem vendedor"
		}
		g, ok := groups[name]
		if !ok {
			g = &sum{}
			groups[name] = g
		}
		g.add(tx)
	}

	out := make([]models.RankingEntry, 0, len(groups))
	for name, g := range groups {
		out = append(out, models.RankingEntry{
			Name:    name,
			Revenue: money(g.revenue),
			Sales:   g.count,
		})
	}
	return Rank(out)
}

// Rank sorts by revenue desc (name breaks ties) and assigns positions 1..n.
func Rank(entries []models.RankingEntry) []models.RankingEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Revenue != entries[j].Revenue {
			return entries[i].Revenue > entries[j].Revenue
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

// WithGrowth fills each entry's growth against the same name in prev.
func WithGrowth(cur, prev []models.RankingEntry) []models.RankingEntry {
	before := make(map[string]float64, len(prev))
	for _, e := range prev {
		before[e.Name] += e.Revenue
	}
	for i := range cur {
		cur[i].Growth = Change(cur[i].Revenue, before[cur[i].Name])
	}
	return cur
}

// Sections builds the store section table. Backend figures are used when
// present; otherwise revenue is derived from sales with unknown cost.
func Sections(figures []models.SectionFigure, sales []models.Transaction) ([]models.SectionPerformance, models.SectionPerformance) {
	type acc struct{ revenue, cost decimal.Decimal }
	groups := make(map[string]*acc)
	get := func(name string) *acc {
		a, ok := groups[name]
		if !ok {
			a = &acc{}
			groups[name] = a
		}
		return a
	}

	if len(figures) > 0 {
		for _, f := range figures {
			a := get(f.Section)
			a.revenue = a.revenue.Add(decimal.NewFromFloat(f.Revenue))
			a.cost = a.cost.Add(decimal.NewFromFloat(f.Cost))
		}
	} else {
		for _, tx := range sales {
			a := get(tx.Category)
			a.revenue = a.revenue.Add(decimal.NewFromFloat(tx.Value))
		}
	}

	var totalRevenue, totalCost decimal.Decimal
	for _, a := range groups {
		totalRevenue = totalRevenue.Add(a.revenue)
		totalCost = totalCost.Add(a.cost)
	}

	hundred := decimal.NewFromInt(100)
	row := func(name string, revenue, cost decimal.Decimal) models.SectionPerformance {
		return models.SectionPerformance{
			Section: name,
			Revenue: money(revenue),
			Cost:    money(cost),
			Margin:  ratio(revenue.Sub(cost).Mul(hundred), revenue),
			Share:   ratio(revenue.Mul(hundred), totalRevenue),
		}
	}

	out := make([]models.SectionPerformance, 0, len(groups))
	for name, a := range groups {
		out = append(out, row(name, a.revenue, a.cost))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Section < out[j].Section
	})
	return out, row(TotalLabel, totalRevenue, totalCost)
}

// MonthProgress returns the elapsed and total days of the month r ends in.
// Elapsed counts from the first of that month through the earlier of the
// range end and today.
func MonthProgress(r models.DateRange, today time.Time) (elapsed, days int) {
	end := r.End
	monthStart := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	days = monthStart.AddDate(0, 1, -1).Day()

	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, end.Location())
	last := end
	if today.Before(last) {
		last = today
	}
	if last.Before(monthStart) {
		return 0, days
	}
	return last.Day(), days
}

// Performance derives the goal vs actual rows. Goal categories come first
// in goal order, then categories that sold without a goal, alphabetically.
func Performance(goalList []goals.Goal, cats []models.CategoryTotal, r models.DateRange, today time.Time) ([]models.PerformanceRow, models.PerformanceRow) {
	elapsed, days := MonthProgress(r, today)

	actuals := make(map[string]models.CategoryTotal, len(cats))
	for _, c := range cats {
		actuals[c.Category] = c
	}

	rows := make([]models.PerformanceRow, 0, len(goalList)+len(cats))
	seen := make(map[string]bool, len(goalList))
	for _, g := range goalList {
		if seen[g.Category] {
			continue
		}
		seen[g.Category] = true
		c := actuals[g.Category]
		rows = append(rows, performanceRow(g.Category, g.ID, g.Target, c.Revenue, c.Liters, elapsed, days))
	}

	var extra []string
	for name := range actuals {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		c := actuals[name]
		rows = append(rows, performanceRow(name, "", 0, c.Revenue, c.Liters, elapsed, days))
	}

	var goal, liters, actual, trend, shortfall decimal.Decimal
	for _, row := range rows {
		goal = goal.Add(decimal.NewFromFloat(row.Goal))
		liters = liters.Add(decimal.NewFromFloat(row.Liters))
		actual = actual.Add(decimal.NewFromFloat(row.Actual))
		trend = trend.Add(decimal.NewFromFloat(row.Trend))
		shortfall = shortfall.Add(decimal.NewFromFloat(row.Shortfall))
	}
	total := models.PerformanceRow{
		Category:  TotalLabel,
		Goal:      money(goal),
		Liters:    volume(liters),
		Actual:    money(actual),
		Trend:     money(trend),
		Variance:  variance(money(actual), money(goal)),
		Shortfall: money(shortfall),
	}
	return rows, total
}

func performanceRow(name, goalID string, goal, actual, liters float64, elapsed, days int) models.PerformanceRow {
	var trend float64
	if elapsed > 0 {
		trend = money(decimal.NewFromFloat(actual).Div(decimal.NewFromInt(int64(elapsed))).Mul(decimal.NewFromInt(int64(days))))
	}
	shortfall := goal - actual
	if shortfall < 0 {
		shortfall = 0
	}
	return models.PerformanceRow{
		Category:  name,
		GoalID:    goalID,
		Goal:      goal,
		Liters:    liters,
		Actual:    actual,
		Trend:     trend,
		Variance:  variance(actual, goal),
		Shortfall: money(decimal.NewFromFloat(shortfall)),
	}
}

// variance is (actual/goal - 1) * 100, 0 without a goal.
func variance(actual, goal float64) float64 {
	if goal == 0 {
		return 0
	}
	return (actual/goal - 1) * 100
}

// Progress is combined / target * 100, 0 without a target.
func Progress(combined, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return combined / target * 100
}
