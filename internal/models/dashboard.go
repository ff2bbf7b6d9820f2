package models

import "time"

// KPI units decide how a card value is formatted.
const (
	UnitCount  = "count"
	UnitUnits  = "units"
	UnitLiters = "liters"
	UnitMoney  = "money"
)

type KPI struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
	Unit   string  `json:"unit"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
	Liters   float64 `json:"liters"`
	Count    int     `json:"count"`
}

type TrendPoint struct {
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Liters  float64 `json:"liters"`
	Count   int     `json:"count"`
}

// PerformanceRow is derived on every fetch or goal change and never stored.
type PerformanceRow struct {
	Category  string  `json:"category"`
	GoalID    string  `json:"goal_id,omitempty"`
	Goal      float64 `json:"goal"`
	Liters    float64 `json:"liters"`
	Actual    float64 `json:"actual"`
	Trend     float64 `json:"trend"`
	Variance  float64 `json:"variance"`
	Shortfall float64 `json:"shortfall"`
}

type SectionPerformance struct {
	Section string  `json:"section"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Margin  float64 `json:"margin"`
	Share   float64 `json:"share"`
}

type FuelView struct {
	Range        DateRange        `json:"range"`
	KPIs         []KPI            `json:"kpis"`
	Categories   []CategoryTotal  `json:"categories"`
	Trend        []TrendPoint     `json:"trend"`
	Ranking      []RankingEntry   `json:"ranking"`
	Performance  []PerformanceRow `json:"performance"`
	Total        PerformanceRow   `json:"total"`
	Transactions []Transaction    `json:"-"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

type StoreView struct {
	Range         DateRange            `json:"range"`
	KPIs          []KPI                `json:"kpis"`
	Categories    []CategoryTotal      `json:"categories"`
	Trend         []TrendPoint         `json:"trend"`
	Ranking       []RankingEntry       `json:"ranking"`
	Sections      []SectionPerformance `json:"sections"`
	SectionsTotal SectionPerformance   `json:"sections_total"`
	Performance   []PerformanceRow     `json:"performance"`
	Total         PerformanceRow       `json:"total"`
	Transactions  []Transaction        `json:"-"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

type Overview struct {
	Range         DateRange `json:"range"`
	FuelRevenue   float64   `json:"fuel_revenue"`
	StoreRevenue  float64   `json:"store_revenue"`
	TotalRevenue  float64   `json:"total_revenue"`
	MonthlyTarget float64   `json:"monthly_target"`
	Progress      float64   `json:"progress"`
	FetchedAt     time.Time `json:"fetched_at"`
}
