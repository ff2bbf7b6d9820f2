package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "posto-dashboard/internal/errors"
	"posto-dashboard/internal/export"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/session"
	"posto-dashboard/internal/upstream"
)

type ExportHandlers struct {
	views    Views
	sessions *session.Manager
	logger   *slog.Logger
}

func NewExportHandlers(views Views, sessions *session.Manager, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{views: views, sessions: sessions, logger: logger}
}

// HandleExport downloads /export/{view}?ini=&fim=&format=csv|xlsx.
func (h *ExportHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)
	requestID := observability.GetRequestID(r.Context())
	q := r.URL.Query()

	view, ok := viewFromString(r.PathValue("view"))
	if !ok {
		apperrors.WriteError(w, logger, apperrors.NotFound("Visão sem exportação"), requestID)
		return
	}
	f, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		apperrors.WriteError(w, logger, apperrors.ValidationWrap(err, "Formato inválido"), requestID)
		return
	}
	rng, err := h.views.ParseRange(q.Get("ini"), q.Get("fim"))
	if err != nil {
		apperrors.WriteError(w, logger, apperrors.ValidationWrap(err, msgInvalidRange), requestID)
		return
	}

	report, err := h.report(r, view, rng)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			h.sessions.Expire(w, r, session.Page, h.logger)
			return
		}
		apperrors.WriteError(w, logger, viewFailure(err), requestID)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report, f); err != nil {
		apperrors.WriteError(w, logger, apperrors.InternalWrap(err, "Falha ao gerar arquivo"), requestID)
		return
	}

	name := export.Filename(report, f)
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("write export", "file", name, "error", err)
		return
	}
	logger.Info("report exported", "file", name, "rows", len(report.Performance))
}

func (h *ExportHandlers) report(r *http.Request, view models.View, rng models.DateRange) (export.Report, error) {
	if view == models.ViewStore {
		v, err := h.views.StoreView(r.Context(), rng)
		if err != nil {
			return export.Report{}, err
		}
		return export.FromStore(v), nil
	}
	v, err := h.views.FuelView(r.Context(), rng)
	if err != nil {
		return export.Report{}, err
	}
	return export.FromFuel(v), nil
}
