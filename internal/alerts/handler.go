package alerts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-soc/aegis-soc/internal/livesync"
	"github.com/aegis-soc/aegis-soc/internal/platform/httpx"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
)

// Handler serves the live alert view and triage actions.
type Handler struct {
	logger *slog.Logger
	store  StorePort
	handle *livesync.Handle[Alert]
	rbac   rbac.Middleware
}

// NewHandler builds a Handler instance. handle is the running
// synchronizer view the dashboard reads from.
func NewHandler(logger *slog.Logger, store StorePort, handle *livesync.Handle[Alert], rbacmw rbac.Middleware) *Handler {
	return &Handler{logger: logger, store: store, handle: handle, rbac: rbacmw}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("alerts", rbac.ActionRead))
		r.Get("/", h.listAlerts)
		r.Get("/overview", h.overview)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("alerts", rbac.ActionWrite))
		r.Post("/", h.createAlert)
		r.Post("/{alertID}/acknowledge", h.acknowledge)
		r.Post("/{alertID}/resolve", h.resolve)
	})
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"alerts":     h.handle.Snapshot(),
		"syncStatus": h.handle.Status(),
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	var (
		bySeverity     map[Severity]int64
		unacknowledged int64
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		bySeverity, err = h.store.CountOpenBySeverity(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		unacknowledged, err = h.store.CountUnacknowledged(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("alert overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Summary{
		OpenBySeverity: bySeverity,
		Unacknowledged: unacknowledged,
		TotalSynced:    len(h.handle.Snapshot()),
		SyncStatus:     string(h.handle.Status()),
	})
}

type createAlertRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Source      string   `json:"source"`
}

func (h *Handler) createAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if req.Title == "" || req.Severity == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "title and severity are required")
		return
	}
	alert := Alert{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      StatusOpen,
		Source:      req.Source,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.store.Insert(r.Context(), alert); err != nil {
		h.logger.Error("insert alert", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alert)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Acknowledge(r.Context(), chi.URLParam(r, "alertID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Resolve(r.Context(), chi.URLParam(r, "alertID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
