// Package upstream is the FULTec REST client: login, fuel sales, the
// salesperson ranking and the convenience store dashboard.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"posto-dashboard/internal/cache"
	"posto-dashboard/internal/config"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
)

const (
	pathLogin   = "/auth/login"
	pathFuel    = "/fueltec/vendas"
	pathRanking = "/ranking/colaboradores"
	pathStore   = "/conveniencia/dashboard/conveniencia"

	maxBodyBytes = 32 << 20
)

var (
	// ErrInvalidCredentials is returned by Login for any non-2xx reply.
	ErrInvalidCredentials = errors.New("upstream: invalid credentials")
	// ErrUnauthorized means the backend rejected the bearer token.
	ErrUnauthorized = errors.New("upstream: token rejected")
	ErrNoToken      = errors.New("upstream: no token in context")
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned %d", e.Endpoint, e.Status)
}

// Observer receives one call per finished backend request.
type Observer interface {
	ObserveUpstream(endpoint string, err error, elapsed time.Duration)
}

type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	fuelTop    int
	cache      *cache.Cache
	observer   Observer
	logger     *slog.Logger
	location   *time.Location
}

func New(cfg config.UpstreamConfig, c *cache.Cache, observer Observer, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		fuelTop:    cfg.FuelTop,
		cache:      c,
		observer:   observer,
		logger:     logger,
		location:   time.Local,
	}
}

type tokenKey struct{}

// WithToken attaches the session's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Login exchanges credentials for an access token. Connection failures are
// returned wrapped; a rejection by the backend is ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(pathLogin, err, start)
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(pathLogin, ErrInvalidCredentials, start)
		return "", ErrInvalidCredentials
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		c.observe(pathLogin, err, start)
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.AccessToken == "" {
		c.observe(pathLogin, ErrInvalidCredentials, start)
		return "", ErrInvalidCredentials
	}

	c.observe(pathLogin, nil, start)
	return body.AccessToken, nil
}

// FuelSales returns the fueling transactions of r, categorised.
func (c *Client) FuelSales(ctx context.Context, r models.DateRange) ([]models.Transaction, error) {
	params := url.Values{}
	params.Set("ini", r.StartParam())
	params.Set("fim", r.EndParam())
	params.Set("top", strconv.Itoa(c.fuelTop))

	return cached(ctx, c, pathFuel, params, func(ctx context.Context) ([]models.Transaction, error) {
		var rows []fuelSaleDTO
		if err := c.get(ctx, pathFuel, params, listOf(&rows, "vendas", "dados")); err != nil {
			return nil, err
		}
		return fuelTransactions(rows, c.location), nil
	})
}

// EmployeeRanking returns the fuel salesperson ranking of r, positioned by
// revenue.
func (c *Client) EmployeeRanking(ctx context.Context, r models.DateRange) ([]models.RankingEntry, error) {
	params := url.Values{}
	params.Set("data_inicio", r.StartParam())
	params.Set("data_fim", r.EndParam())

	return cached(ctx, c, pathRanking, params, func(ctx context.Context) ([]models.RankingEntry, error) {
		var rows []rankingDTO
		if err := c.get(ctx, pathRanking, params, listOf(&rows, "ranking", "colaboradores", "dados")); err != nil {
			return nil, err
		}
		return rankingEntries(rows), nil
	})
}

// StoreDashboard returns the convenience store sales and section figures
// of r.
func (c *Client) StoreDashboard(ctx context.Context, r models.DateRange) (models.StoreData, error) {
	params := url.Values{}
	params.Set("data_inicio", r.StartParam())
	params.Set("data_fim", r.EndParam())

	return cached(ctx, c, pathStore, params, func(ctx context.Context) (models.StoreData, error) {
		var body storeDashboardDTO
		if err := c.get(ctx, pathStore, params, &body); err != nil {
			return models.StoreData{}, err
		}
		return body.toModel(c.location), nil
	})
}

// Refresh drops every cached backend reply.
func (c *Client) Refresh(ctx context.Context) error {
	return c.cache.Bump(ctx)
}

func cached[T any](ctx context.Context, c *Client, path string, params url.Values, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if tokenFrom(ctx) == "" {
		return zero, ErrNoToken
	}
	key, err := c.cache.Key(ctx, path, params.Encode())
	if err != nil {
		c.logger.Warn("cache key unavailable, fetching directly", "endpoint", path, "error", err)
		return load(ctx)
	}
	return cache.Fetch(ctx, c.cache, key, load)
}

// get performs an authenticated GET with exponential backoff. Network
// errors, 429 and 5xx are retried; other statuses are permanent.
func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	ctx, span := observability.StartSpan(ctx, "upstream "+path)
	defer span.FinishAndLog(c.logger)
	span.SetTag("params", params.Encode())

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	attempt := 0
	operation := func() error {
		attempt++
		start := time.Now()
		err := c.do(ctx, path, target, dest)
		c.observe(path, err, start)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		observability.FromContext(ctx, c.logger).Warn("upstream call failed, retrying",
			"endpoint", path,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		span.SetError(err)
		return err
	}
	span.SetTag("attempts", strconv.Itoa(attempt))
	return nil
}

func (c *Client) do(ctx context.Context, path, target string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+tokenFrom(ctx))
	req.Header.Set("Accept", "application/json")
	if id := observability.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: %w", ErrUnauthorized, &StatusError{Endpoint: path, Status: resp.StatusCode}))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &StatusError{Endpoint: path, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return backoff.Permanent(&StatusError{Endpoint: path, Status: resp.StatusCode})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dest); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *Client) observe(endpoint string, err error, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(endpoint, err, time.Since(start))
	}
}

var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
