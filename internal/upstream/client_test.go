package upstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-dashboard/internal/category"
	"posto-dashboard/internal/config"
	"posto-dashboard/internal/models"
)

func init() {
	newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.UpstreamConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		FuelTop:    5000,
	}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.location = time.UTC
	return c
}

func march() models.DateRange {
	return models.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
	}
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathLogin, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		_ = r.ParseForm()

		if r.PostForm.Get("username") != "frentista" || r.PostForm.Get("password") != "s3nha" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-123","token_type":"bearer"}`)
	}))

	token, err := c.Login(context.Background(), "frentista", "s3nha")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	_, err = c.Login(context.Background(), "frentista", "errada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(config.UpstreamConfig{BaseURL: srv.URL, Timeout: time.Second}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestFuelSales(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathFuel, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("ini"))
		assert.Equal(t, "2025-03-17", r.URL.Query().Get("fim"))
		assert.Equal(t, "5000", r.URL.Query().Get("top"))

		_, _ = io.WriteString(w, `[
			{"id": 1, "produto": "GASOLINA ADITIVADA", "valor": 250.5, "litros": "40,5", "funcionario": "João", "data": "2025-03-02T08:15:00"},
			{"id": "2", "produto": "Diesel S500", "valor": "100", "litros": 16, "funcionario": "Maria", "data": "2025-03-03 10:00:00"}
		]`)
	}))

	ctx := WithToken(context.Background(), "tok")
	txs, err := c.FuelSales(ctx, march())
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "1", txs[0].ID)
	assert.Equal(t, category.GasolinaAditivada, txs[0].Category)
	assert.InDelta(t, 40.5, txs[0].Liters, 1e-9)
	assert.Equal(t, 8, txs[0].Timestamp.Hour())

	assert.Equal(t, category.DieselS500, txs[1].Category)
	assert.InDelta(t, 100, txs[1].Value, 1e-9)
}

func TestFuelSales_WrappedList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"vendas": [{"id": 7, "produto": "ETANOL", "valor": 10, "litros": 2}]}`)
	}))

	txs, err := c.FuelSales(WithToken(context.Background(), "tok"), march())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, category.Etanol, txs[0].Category)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"colaborador": "Ana", "faturamento": 10}, {"nome": "Bia", "faturamento": 30}]`)
	}))

	ranking, err := c.EmployeeRanking(WithToken(context.Background(), "tok"), march())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	require.Len(t, ranking, 2)
	assert.Equal(t, "Bia", ranking[0].Name)
	assert.Equal(t, 1, ranking[0].Position)
	assert.Equal(t, "Ana", ranking[1].Name)
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.EmployeeRanking(WithToken(context.Background(), "tok"), march())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, int32(4), calls.Load())
}

func TestGet_ClientErrorsArePermanent(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))

			_, err := c.StoreDashboard(WithToken(context.Background(), "tok"), march())
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestStoreDashboard(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("data_inicio"))
		assert.Equal(t, "2025-03-17", r.URL.Query().Get("data_fim"))
		_, _ = io.WriteString(w, `{
			"vendas": [
				{"id": 1, "produto": "Coca-Cola 2L", "departamento": "Refrigerantes", "valor": 12.5, "quantidade": 2, "vendedor": "Pedro", "data": "2025-03-05T14:00:00"},
				{"id": 2, "produto": "Marlboro", "departamento": "", "valor": 15, "funcionario": "Julia", "data": "2025-03-05"}
			],
			"secoes": [
				{"secao": "Bebidas", "faturamento": 1000, "custo": 600},
				{"secao": "Tabacaria", "faturamento": "500,00", "custo": null}
			]
		}`)
	}))

	data, err := c.StoreDashboard(WithToken(context.Background(), "tok"), march())
	require.NoError(t, err)

	require.Len(t, data.Sales, 2)
	assert.Equal(t, category.Bebidas, data.Sales[0].Category)
	assert.Equal(t, 2.0, data.Sales[0].Quantity)
	assert.Equal(t, "Julia", data.Sales[1].Employee)
	assert.Equal(t, 1.0, data.Sales[1].Quantity)

	require.Len(t, data.Sections, 2)
	assert.Equal(t, category.Tabacaria, data.Sections[1].Section)
	assert.Equal(t, 500.0, data.Sections[1].Revenue)
}

func TestFetch_RequiresToken(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.FuelSales(context.Background(), march())
	assert.ErrorIs(t, err, ErrNoToken)
}
