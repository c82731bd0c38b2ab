package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"domaincheck/internal/alert"
	"domaincheck/internal/checker"
	"domaincheck/internal/config"
	"domaincheck/internal/handler"
	"domaincheck/internal/metrics"
	"domaincheck/internal/model"
	"domaincheck/internal/service"
	"domaincheck/internal/session"
	"domaincheck/internal/storage"
	"domaincheck/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Echo      *echo.Echo
	Scheduler *service.Scheduler
	Loopia    *service.LoopiaClient
}

func main() {
	utils.InitLogger()
	defer func() { _ = utils.Log.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Log.Fatal("invalid configuration", utils.Field("error", err.Error()))
	}

	srv := NewServer(cfg)
	if err := srv.Scheduler.Start(); err != nil {
		utils.Log.Fatal("scheduler failed to start", utils.Field("error", err.Error()))
	}

	// Start server
	go func() {
		if err := srv.Echo.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatal("shutting down the server", utils.Field("error", err.Error()))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Scheduler.Stop(ctx)
	if srv.Loopia != nil {
		_ = srv.Loopia.Close()
	}
	if err := srv.Echo.Shutdown(ctx); err != nil {
		utils.Log.Error("shutdown failed", utils.Field("error", err.Error()))
	}
}

// internalAPICall reports whether the request is a session controller calling
// the check API over loopback. Those calls are already paced by the form
// submissions that triggered them.
func internalAPICall(c echo.Context) bool {
	r := c.Request()
	if !strings.HasPrefix(r.URL.Path, "/api/") || r.Header.Get(echo.HeaderXForwardedFor) != "" {
		return false
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// NewServer wires storage, lookup sources, sessions and routes.
func NewServer(cfg *config.Config) *Server {
	store := storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	m := metrics.New()

	domains := &service.DomainService{
		Storage:  store,
		CacheTTL: cfg.CacheTTL,
		Metrics:  m,
	}
	if cfg.EnableDNS {
		domains.DNS = service.NewDNSService(cfg.DNSResolver)
	}
	if cfg.EnableWhois {
		domains.Whois = service.LookupWhois
	}
	if cfg.EnableTLS {
		domains.Certs = service.NewTLSProber()
	}
	var loopia *service.LoopiaClient
	if cfg.LoopiaEnabled() {
		var err error
		loopia, err = service.NewLoopiaClient(service.LoopiaEndpoint, cfg.LoopiaUser, cfg.LoopiaPass)
		if err != nil {
			utils.Log.Error("loopia client disabled", utils.Field("error", err.Error()))
		} else {
			domains.Loopia = loopia
		}
	}

	registry := session.NewRegistry(cfg.SessionTTL, func() *checker.Controller {
		return checker.New(checker.Options{
			BaseURL:        cfg.CheckAPIURL,
			HTTPClient:     &http.Client{Timeout: 30 * time.Second},
			Alerts:         alert.NewStore(alert.WithTTL(cfg.AlertTTL)),
			CancelInFlight: cfg.CancelInFlight,
			Metrics:        m,
		})
	}, m)

	h := handler.NewHandler(cfg, registry, domains, store)

	// Web Server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: internalAPICall,
		Store:   middleware.NewRateLimiterMemoryStore(20), // 20 requests per second
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return utils.ExtractIP(c, utils.ProxyConfig{TrustProxy: cfg.TrustProxy}), nil
		},
	}))

	// Templates
	reg, err := utils.NewTemplateRegistry()
	if err != nil {
		utils.Log.Fatal("templates failed to parse", utils.Field("error", err.Error()))
	}
	e.Renderer = reg

	// Custom HTTP Error Handler
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}

		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			_ = c.JSON(code, model.CheckResponse{Success: false, Error: http.StatusText(code)})
			return
		}

		errorData := map[string]interface{}{
			"Code":    code,
			"Message": http.StatusText(code),
		}
		if renderErr := c.Render(code, "error.html", errorData); renderErr != nil {
			utils.Log.Error("error page failed", utils.Field("error", renderErr.Error()))
		}
	}

	// Routes
	h.Routes(e)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return &Server{
		Echo:      e,
		Scheduler: service.NewScheduler(registry),
		Loopia:    loopia,
	}
}
