package templates

import (
	"time"

	"github.com/a-h/templ"

	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
)

// Tabs in side panel order.
var Tabs = []models.View{models.ViewFuel, models.ViewStore, models.ViewOverview, models.ViewChat}

type LoginData struct {
	Username string
	Error    string
}

type ShellData struct {
	Tab          models.View
	Username     string
	Range        models.DateRange
	PollInterval time.Duration
	Greeting     string
}

func (s ShellData) Tabs() []models.View { return Tabs }

func (s ShellData) GreetingEntry() ChatEntry {
	return ChatEntry{Text: s.Greeting}
}

// Endpoint is the SSE stream that fills the current tab.
func (s ShellData) Endpoint() string {
	return "/sse/" + string(s.Tab)
}

type GoalDialogData struct {
	View  models.View
	Goals []goals.Goal
	Error string
}

type ChatEntry struct {
	Mine bool
	Text string
	At   time.Time
}

// performanceTable feeds the shared goal tracking table.
type performanceTable struct {
	View  models.View
	Rows  []models.PerformanceRow
	Total models.PerformanceRow
	Fuel  bool
}

type storeContent struct {
	*models.StoreView
	Table performanceTable
}

type fuelContent struct {
	*models.FuelView
	Table performanceTable
}

func Login(data LoginData) templ.Component {
	return component("login", data)
}

func Dashboard(data ShellData) templ.Component {
	return component("dashboard", data)
}

func FuelContent(v *models.FuelView) templ.Component {
	return component("fuel", fuelContent{
		FuelView: v,
		Table:    performanceTable{View: models.ViewFuel, Rows: v.Performance, Total: v.Total, Fuel: true},
	})
}

func StoreContent(v *models.StoreView) templ.Component {
	return component("store", storeContent{
		StoreView: v,
		Table:     performanceTable{View: models.ViewStore, Rows: v.Performance, Total: v.Total},
	})
}

func OverviewContent(v *models.Overview) templ.Component {
	return component("overview", v)
}

// ViewError replaces the view with an inline error message.
func ViewError(message string) templ.Component {
	return component("view-error", message)
}

func GoalDialog(data GoalDialogData) templ.Component {
	return component("goal-dialog", data)
}

func ChatMessage(e ChatEntry) templ.Component {
	return component("chat-message", e)
}

func Toast(message string) templ.Component {
	return component("toast", message)
}
