// Package templates holds the page and fragment components of the
// dashboard. Pages are served whole; fragments are patched into the page
// over Datastar SSE.
package templates

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"posto-dashboard/internal/format"
	"posto-dashboard/internal/models"
)

// Element ids fragments are patched into.
const (
	ViewContentID = "view-content"
	GoalDialogID  = "goal-dialog"
	ChatLogID     = "chat-log"
	ToastID       = "toast"
)

//go:embed html/*.html
var files embed.FS

var funcs = template.FuncMap{
	"money":    format.Money,
	"liters":   format.Liters,
	"integer":  format.Integer,
	"percent":  format.Percent,
	"change":   format.Change,
	"trend":    format.Trend,
	"number":   format.Number,
	"date":     func(t time.Time) string { return t.Format("02/01/2006") },
	"clock":    func(t time.Time) string { return t.Format("15:04") },
	"kpi":      kpiValue,
	"chart":    newChart,
	"bar":      barWidth,
	"poll":     pollAttr,
	"upper":    strings.ToUpper,
	"tabLabel": tabLabel,
}

var tmpl = template.Must(template.New("templates").Funcs(funcs).ParseFS(files, "html/*.html"))

func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		return nil
	})
}

// HTML renders c to a string for an SSE patch.
func HTML(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func kpiValue(k models.KPI) string {
	switch k.Unit {
	case models.UnitMoney:
		return format.Money(k.Value)
	case models.UnitLiters:
		return format.Liters(k.Value)
	case models.UnitUnits:
		return format.Number(k.Value, 2)
	default:
		return format.Number(k.Value, 0)
	}
}

// barWidth is v as a percentage of max, for inline bar charts.
func barWidth(v, max float64) string {
	if max <= 0 || v <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", v/max*100)
}

// pollAttr re-requests endpoint every interval. The interval sits in the
// attribute name, which html/template will not interpolate.
func pollAttr(endpoint string, every time.Duration) template.HTMLAttr {
	secs := int(every.Seconds())
	if secs <= 0 {
		secs = 60
	}
	return template.HTMLAttr(fmt.Sprintf(`data-on-interval__duration.%ds="@get('%s')"`, secs, template.JSEscapeString(endpoint)))
}

func tabLabel(v models.View) string {
	switch v {
	case models.ViewFuel:
		return "Posto"
	case models.ViewStore:
		return "Conveniência"
	case models.ViewOverview:
		return "Visão Geral"
	case models.ViewChat:
		return "Assistente"
	default:
		return string(v)
	}
}
