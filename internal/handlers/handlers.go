package handlers

import (
	"context"
	"errors"
	"net/url"
	"time"

	apperrors "posto-dashboard/internal/errors"
	"posto-dashboard/internal/chat"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/upstream"
)

// Views builds the dashboard views; *services.Dashboard implements it.
type Views interface {
	FuelView(ctx context.Context, r models.DateRange) (*models.FuelView, error)
	StoreView(ctx context.Context, r models.DateRange) (*models.StoreView, error)
	Overview(ctx context.Context, r models.DateRange) (*models.Overview, error)
	ParseRange(ini, fim string) (models.DateRange, error)
	Now() time.Time
	Stats() map[string]any
}

// Goals is the goal record service; *goals.Service implements it.
type Goals interface {
	List(ctx context.Context, view models.View) ([]goals.Goal, error)
	Get(ctx context.Context, id string) (goals.Goal, error)
	Save(ctx context.Context, in goals.Goal) (goals.Goal, error)
	Delete(ctx context.Context, id string) error
	MonthlyTarget(ctx context.Context) (float64, error)
	SetMonthlyTarget(ctx context.Context, v float64) error
}

type Assistant interface {
	Reply(ctx context.Context, input string) chat.Reply
}

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Refresher drops cached backend replies.
type Refresher interface {
	Refresh(ctx context.Context) error
}

const (
	msgUpstream     = "Erro ao carregar dados da API"
	msgInvalidRange = "Período inválido"
	msgGoalNotFound = "Meta não encontrada"
	msgGoalInvalid  = "Meta inválida"
)

// classify maps service errors onto the error envelope.
func classify(err error) *apperrors.AppError {
	var (
		appErr *apperrors.AppError
		status *upstream.StatusError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, goals.ErrNotFound):
		return apperrors.NotFound(msgGoalNotFound)
	case errors.Is(err, goals.ErrInvalid):
		return apperrors.ValidationWrap(err, msgGoalInvalid)
	case errors.As(err, &status), errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Upstream(err, msgUpstream)
	default:
		return apperrors.As(err)
	}
}

func viewFromString(s string) (models.View, bool) {
	v := models.View(s)
	return v, v.HasGoals()
}

// viewFailure classifies a failed view build. Failures not recognised
// otherwise came from reading the backend reply.
func viewFailure(err error) *apperrors.AppError {
	if appErr := classify(err); appErr.Code != apperrors.CodeInternal {
		return appErr
	}
	return apperrors.Upstream(err, msgUpstream)
}
