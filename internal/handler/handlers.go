package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"domaincheck/internal/checker"
	"domaincheck/internal/config"
	"domaincheck/internal/model"
	"domaincheck/internal/service"
	"domaincheck/internal/session"
	"domaincheck/internal/storage"
	"domaincheck/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const msgInvalidDomain = "Invalid domain name"

type Handler struct {
	Config   *config.Config
	Sessions *session.Registry
	Domains  *service.DomainService
	Storage  *storage.Storage
	Upgrader websocket.Upgrader
}

func NewHandler(cfg *config.Config, sessions *session.Registry, domains *service.DomainService, store *storage.Storage) *Handler {
	h := &Handler{
		Config:   cfg,
		Sessions: sessions,
		Domains:  domains,
		Storage:  store,
	}
	h.Upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// session returns the caller's controller, issuing a cookie for new sessions.
func (h *Handler) session(c echo.Context) *checker.Controller {
	var id string
	if ck, err := c.Cookie(session.CookieName); err == nil {
		id = ck.Value
	}
	ctrl, sid, created := h.Sessions.Acquire(id)
	if created {
		c.SetCookie(h.sessionCookie(sid))
	}
	return ctrl
}

// existing returns the caller's controller without issuing a session.
func (h *Handler) existing(c echo.Context) (*checker.Controller, bool) {
	ck, err := c.Cookie(session.CookieName)
	if err != nil {
		return nil, false
	}
	return h.Sessions.Lookup(ck.Value)
}

// current is the caller's view state, or the empty form for unknown callers.
func (h *Handler) current(c echo.Context) model.ViewState {
	if ctrl, ok := h.existing(c); ok {
		return ctrl.State()
	}
	return model.ViewState{}
}

func (h *Handler) sessionCookie(sid string) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.Config.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// === Page routes ===

func (h *Handler) Index(c echo.Context) error {
	ctrl := h.session(c)
	return c.Render(http.StatusOK, "index.html", ctrl.State())
}

// Check submits the form. HTMX callers get the panel and alert fragments back,
// plain form posts are redirected to the page.
func (h *Handler) Check(c echo.Context) error {
	ctrl := h.session(c)
	domain := c.FormValue("domain")

	err := ctrl.Submit(c.Request().Context(), domain)
	if err != nil && !errors.Is(err, checker.ErrSuperseded) {
		utils.Log.Debug("submission settled with error",
			utils.Field("domain", domain),
			utils.Field("ip", utils.ExtractIP(c, utils.ProxyConfig{TrustProxy: h.Config.TrustProxy})),
			utils.Field("error", err.Error()))
	}

	if c.Request().Header.Get("HX-Request") == "true" {
		return c.Render(http.StatusOK, "check.html", ctrl.State())
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// Panel re-renders the form, used by the page while another request for the
// same session is in flight.
func (h *Handler) Panel(c echo.Context) error {
	return c.Render(http.StatusOK, "panel.html", h.current(c))
}

func (h *Handler) AlertFragment(c echo.Context) error {
	return c.Render(http.StatusOK, "alert.html", h.current(c).Alert)
}

func (h *Handler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.current(c))
}

// === API ===

func (h *Handler) CheckDomainAPI(c echo.Context) error {
	domain, err := url.PathUnescape(c.Param("domain"))
	domain = strings.TrimSpace(domain)
	if err != nil || !utils.IsValidTarget(domain) {
		return c.JSON(http.StatusOK, model.CheckResponse{Success: false, Error: msgInvalidDomain})
	}

	data, err := h.Domains.Check(c.Request().Context(), domain)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return c.JSON(http.StatusBadGateway, model.CheckResponse{Success: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, model.CheckResponse{Success: true, Data: data})
}

func (h *Handler) History(c echo.Context) error {
	domain := service.NormalizeDomain(c.Param("domain"))
	if !utils.IsValidTarget(domain) {
		return c.JSON(http.StatusBadRequest, model.CheckResponse{Success: false, Error: msgInvalidDomain})
	}
	entries, diffs, err := h.Storage.GetHistoryWithDiffs(c.Request().Context(), domain)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, model.CheckResponse{Success: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"entries": entries,
			"diffs":   diffs,
		},
	})
}

func (h *Handler) Healthz(c echo.Context) error {
	redisStatus := "ok"
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()
	if err := h.Storage.Client.Ping(ctx).Err(); err != nil {
		redisStatus = "unavailable"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"redis":    redisStatus,
		"sessions": h.Sessions.Len(),
	})
}

// Routes registers the page, API and websocket routes on e.
func (h *Handler) Routes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/check", h.Check) // HTMX
	e.GET("/panel", h.Panel)
	e.GET("/alert", h.AlertFragment)
	e.GET("/state", h.State)
	e.GET("/ws", h.HandleWS)
	e.GET("/healthz", h.Healthz)

	api := e.Group("/api")
	api.GET("/check-domain/:domain", h.CheckDomainAPI)
	api.GET("/history/:domain", h.History)
}
