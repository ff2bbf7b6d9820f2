package models

import "time"

type View string

const (
	ViewFuel     View = "posto"
	ViewStore    View = "conveniencia"
	ViewOverview View = "overview"
	ViewChat     View = "chat"
)

func (v View) Valid() bool {
	switch v {
	case ViewFuel, ViewStore, ViewOverview, ViewChat:
		return true
	}
	return false
}

// HasGoals reports whether goal records can be attached to the view.
func (v View) HasGoals() bool {
	return v == ViewFuel || v == ViewStore
}

// Transaction is one sale or fueling event read from the backend. The
// dashboard never mutates it.
type Transaction struct {
	ID         string    `json:"id"`
	Product    string    `json:"product"`
	Department string    `json:"department"`
	Value      float64   `json:"value"`
	Liters     float64   `json:"liters"`
	Quantity   float64   `json:"quantity"`
	Employee   string    `json:"employee"`
	Timestamp  time.Time `json:"timestamp"`
	Category   string    `json:"category"`
}

type RankingEntry struct {
	Position int     `json:"position"`
	Name     string  `json:"name"`
	Revenue  float64 `json:"revenue"`
	Liters   float64 `json:"liters,omitempty"`
	Sales    int     `json:"sales"`
	Growth   float64 `json:"growth"`
}

// SectionFigure is the store backend's per-section revenue and cost.
type SectionFigure struct {
	Section string  `json:"section"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
}

type StoreData struct {
	Sales    []Transaction   `json:"sales"`
	Sections []SectionFigure `json:"sections"`
}
