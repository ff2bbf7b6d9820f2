// Package goals keeps the per-category monthly goals of the fuel and store
// views and the station's monthly revenue target.
package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"posto-dashboard/internal/category"
	"posto-dashboard/internal/models"
)

// DefaultMonthlyTarget applies until an operator sets one.
const DefaultMonthlyTarget = 280000.0

var (
	ErrNotFound = errors.New("goal not found")
	ErrInvalid  = errors.New("invalid goal")
)

type Goal struct {
	ID        string      `json:"id"`
	View      models.View `json:"view" validate:"oneof=posto conveniencia"`
	Category  string      `json:"category" validate:"required,max=64"`
	Target    float64     `json:"target" validate:"gte=0"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store persists goals. Implementations return List in insertion order.
type Store interface {
	List(ctx context.Context, view models.View) ([]Goal, error)
	Get(ctx context.Context, id string) (Goal, error)
	Put(ctx context.Context, g Goal) error
	Delete(ctx context.Context, id string) error
	MonthlyTarget(ctx context.Context) (float64, bool, error)
	SetMonthlyTarget(ctx context.Context, v float64) error
	Close() error
}

// Open picks a backend from a URI of the form jsonfile:<path> or
// sqlite:<path>.
func Open(uri string) (Store, error) {
	scheme, path, ok := strings.Cut(uri, ":")
	if !ok || path == "" {
		return nil, fmt.Errorf("goals: malformed store uri %q", uri)
	}
	switch scheme {
	case "jsonfile":
		store, err := OpenJSONFile(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("goals: unknown store backend %q", scheme)
	}
}

type seed struct {
	category string
	target   float64
}

var defaultSeeds = map[models.View][]seed{
	models.ViewFuel: {
		{category.GasolinaComum, 120000},
		{category.GasolinaAditivada, 40000},
		{category.Etanol, 30000},
		{category.DieselS10, 60000},
		{category.DieselS500, 20000},
	},
	models.ViewStore: {
		{category.Bebidas, 15000},
		{category.Alimentos, 12000},
		{category.Tabacaria, 8000},
		{category.Mercearia, 5000},
		{category.Higiene, 2000},
	},
}

// Defaults are seeded into a view that has no goals yet.
func Defaults(view models.View) []Goal {
	seeds := defaultSeeds[view]
	out := make([]Goal, 0, len(seeds))
	for _, sd := range seeds {
		out = append(out, Goal{View: view, Category: sd.category, Target: sd.target})
	}
	return out
}

// Service validates goal edits and seeds defaults on first read.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time

	// serialises read-modify-write sequences against the store
	mu sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

// List returns the goals of view, seeding the defaults when it has none.
func (s *Service) List(ctx context.Context, view models.View) ([]Goal, error) {
	if !view.HasGoals() {
		return nil, fmt.Errorf("%w: view %q has no goals", ErrInvalid, view)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.List(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if len(list) > 0 {
		return list, nil
	}

	for _, g := range Defaults(view) {
		g.ID = uuid.NewString()
		g.CreatedAt = s.now().UTC()
		g.UpdatedAt = g.CreatedAt
		if err := s.store.Put(ctx, g); err != nil {
			return nil, fmt.Errorf("seed default goals: %w", err)
		}
	}
	return s.store.List(ctx, view)
}

// Save creates or updates a goal. A goal without an ID whose category
// already exists in the view updates that goal instead of adding a second
// row for the same category. Renaming a goal onto a category another goal
// of the view already holds is rejected.
func (s *Service) Save(ctx context.Context, in Goal) (Goal, error) {
	known := category.FuelCategories
	if in.View == models.ViewStore {
		known = category.StoreSections
	}
	in.Category = category.Canonical(in.Category, known)

	if err := s.validate.Struct(in); err != nil {
		return Goal{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, err := s.find(ctx, in)
	if err != nil {
		return Goal{}, err
	}

	if existing != nil {
		if existing.Category != in.Category {
			if err := s.checkCategoryFree(ctx, in.View, in.Category, existing.ID); err != nil {
				return Goal{}, err
			}
		}
		existing.Category = in.Category
		existing.Target = in.Target
		existing.UpdatedAt = now
		if err := s.store.Put(ctx, *existing); err != nil {
			return Goal{}, fmt.Errorf("update goal: %w", err)
		}
		return *existing, nil
	}

	g := Goal{
		ID:        uuid.NewString(),
		View:      in.View,
		Category:  in.Category,
		Target:    in.Target,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, g); err != nil {
		return Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (s *Service) find(ctx context.Context, in Goal) (*Goal, error) {
	if in.ID != "" {
		g, err := s.store.Get(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		if g.View != in.View {
			return nil, fmt.Errorf("%w: goal %s belongs to %s", ErrInvalid, g.ID, g.View)
		}
		return &g, nil
	}

	list, err := s.store.List(ctx, in.View)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	for i := range list {
		if list[i].Category == in.Category {
			return &list[i], nil
		}
	}
	return nil, nil
}

// checkCategoryFree fails when a goal other than id already holds cat in view.
func (s *Service) checkCategoryFree(ctx context.Context, view models.View, cat, id string) error {
	list, err := s.store.List(ctx, view)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	for _, g := range list {
		if g.Category == cat && g.ID != id {
			return fmt.Errorf("%w: category %s already has goal %s", ErrInvalid, cat, g.ID)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Goal, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, id)
}

func (s *Service) MonthlyTarget(ctx context.Context) (float64, error) {
	v, ok, err := s.store.MonthlyTarget(ctx)
	if err != nil {
		return 0, fmt.Errorf("read monthly target: %w", err)
	}
	if !ok {
		return DefaultMonthlyTarget, nil
	}
	return v, nil
}

func (s *Service) SetMonthlyTarget(ctx context.Context, v float64) error {
	if err := s.validate.Var(v, "gt=0"); err != nil {
		return fmt.Errorf("%w: monthly target must be positive", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetMonthlyTarget(ctx, v)
}

func (s *Service) Close() error {
	return s.store.Close()
}
