/*Operator commands for the dashboard's goal store, categorisation and reports*/
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"posto-dashboard/internal/category"
	"posto-dashboard/internal/config"
	"posto-dashboard/internal/export"
	"posto-dashboard/internal/format"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/services"
	"posto-dashboard/internal/upstream"
)

// env is bound into every command's Run.
type env struct {
	out    io.Writer
	logger *slog.Logger
	store  string
}

func (e *env) openGoals() (*goals.Service, error) {
	store, err := goals.Open(e.store)
	if err != nil {
		return nil, fmt.Errorf("open goal store: %w", err)
	}
	return goals.NewService(store), nil
}

// cli commands / args available
type cli struct {
	LogLevel  string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level."`
	GoalStore string `name:"goal-store" default:"jsonfile:data/goals.json" env:"GOALS_STORE" help:"Goal store [jsonfile:/path/goals.json sqlite:/path/goals.db]"`

	Classify classifyCmd `cmd:"" help:"Show the category a product name falls into."`
	Goals    goalsCmd    `cmd:"" help:"Inspect and edit goals."`
	Export   exportCmd   `cmd:"" help:"Download a fuel or store report from the backend."`
}

type classifyCmd struct {
	Name       string `arg:"" help:"Product name as the backend reports it."`
	Store      bool   `help:"Classify as a convenience store product."`
	Department string `help:"Department of a store product."`
}

func (c *classifyCmd) Run(e *env) error {
	if c.Store || c.Department != "" {
		_, err := fmt.Fprintln(e.out, category.Store(c.Name, c.Department))
		return err
	}
	_, err := fmt.Fprintln(e.out, category.Fuel(c.Name))
	return err
}

type goalsCmd struct {
	List   goalsListCmd   `cmd:"" help:"List the goals of one or both views."`
	Set    goalsSetCmd    `cmd:"" help:"Create or update the goal of a category."`
	Delete goalsDeleteCmd `cmd:"" help:"Remove a goal by id."`
	Target goalsTargetCmd `cmd:"" help:"Show or set the monthly revenue target."`
}

type goalsListCmd struct {
	View string `help:"Only this view, posto or conveniencia."`
}

func (c *goalsListCmd) Run(e *env) error {
	svc, err := e.openGoals()
	if err != nil {
		return err
	}
	defer svc.Close()

	views := []models.View{models.ViewFuel, models.ViewStore}
	if c.View != "" {
		view := models.View(c.View)
		if view != models.ViewFuel && view != models.ViewStore {
			return fmt.Errorf("unknown view %q", c.View)
		}
		views = []models.View{view}
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVIEW\tCATEGORY\tTARGET")
	for _, view := range views {
		list, err := svc.List(context.Background(), view)
		if err != nil {
			return err
		}
		for _, g := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.View, g.Category, format.Money(g.Target))
		}
	}
	return tw.Flush()
}

type goalsSetCmd struct {
	View     string  `arg:"" enum:"posto,conveniencia" help:"posto or conveniencia."`
	Category string  `arg:"" help:"Category name; known names are canonicalised."`
	Target   float64 `arg:"" help:"Monthly goal in reais."`
}

func (c *goalsSetCmd) Run(e *env) error {
	svc, err := e.openGoals()
	if err != nil {
		return err
	}
	defer svc.Close()

	g, err := svc.Save(context.Background(), goals.Goal{
		View:     models.View(c.View),
		Category: c.Category,
		Target:   c.Target,
	})
	if err != nil {
		return err
	}
	e.logger.Info("goal saved", "id", g.ID, "category", g.Category)
	_, err = fmt.Fprintf(e.out, "%s\t%s\t%s\n", g.ID, g.Category, format.Money(g.Target))
	return err
}

type goalsDeleteCmd struct {
	ID string `arg:"" help:"Goal id as shown by goals list."`
}

func (c *goalsDeleteCmd) Run(e *env) error {
	svc, err := e.openGoals()
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Delete(context.Background(), c.ID)
}

type goalsTargetCmd struct {
	Value float64 `arg:"" optional:"" help:"New target in reais; omit to print the current one."`
}

func (c *goalsTargetCmd) Run(e *env) error {
	svc, err := e.openGoals()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	if c.Value > 0 {
		if err := svc.SetMonthlyTarget(ctx, c.Value); err != nil {
			return err
		}
	}
	target, err := svc.MonthlyTarget(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, format.Money(target))
	return err
}

type exportCmd struct {
	View     string        `arg:"" enum:"posto,conveniencia" help:"posto or conveniencia."`
	Ini      string        `help:"First day, YYYY-MM-DD. Defaults to the first of the month."`
	Fim      string        `help:"Last day, YYYY-MM-DD. Defaults to today."`
	Format   string        `default:"csv" enum:"csv,xlsx" help:"Report format."`
	Out      string        `short:"o" help:"Output file; - for stdout. Defaults to a name derived from view and range."`
	BaseURL  string        `name:"base-url" default:"http://localhost:8000" env:"UPSTREAM_BASE_URL" help:"FULTec backend URL."`
	Timeout  time.Duration `default:"30s" help:"Backend request timeout."`
	Username string        `required:"" env:"POSTO_USERNAME" help:"Backend username."`
	Password string        `required:"" env:"POSTO_PASSWORD" help:"Backend password."`
}

func (c *exportCmd) Run(e *env) error {
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	rng, err := models.ParseDateRange(c.Ini, c.Fim, time.Now())
	if err != nil {
		return err
	}

	svc, err := e.openGoals()
	if err != nil {
		return err
	}
	defer svc.Close()

	client := upstream.New(config.UpstreamConfig{
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxRetries: 3,
		FuelTop:    5000,
	}, nil, nil, e.logger)

	ctx := context.Background()
	token, err := client.Login(ctx, c.Username, c.Password)
	if err != nil {
		return err
	}
	ctx = upstream.WithToken(ctx, token)

	dashboard := services.NewDashboard(client, svc, e.logger)

	var report export.Report
	switch models.View(c.View) {
	case models.ViewStore:
		v, err := dashboard.StoreView(ctx, rng)
		if err != nil {
			return err
		}
		report = export.FromStore(v)
	default:
		v, err := dashboard.FuelView(ctx, rng)
		if err != nil {
			return err
		}
		report = export.FromFuel(v)
	}

	if c.Out == "-" {
		return export.Write(e.out, report, f)
	}

	name := c.Out
	if name == "" {
		name = export.Filename(report, f)
	}
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := export.Write(file, report, f); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	e.logger.Info("report written", "file", name, "rows", len(report.Transactions))
	_, err = fmt.Fprintln(e.out, name)
	return err
}

func run(args []string, out, errOut io.Writer) error {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("postoctl"),
		kong.Description("Operator tool for the posto dashboard."),
		kong.Writers(out, errOut),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(config.LoggerConfig{Level: c.LogLevel, Format: "text"}, errOut)
	return ctx.Run(&env{out: out, logger: logger, store: c.GoalStore})
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "postoctl:", err)
		os.Exit(1)
	}
}
