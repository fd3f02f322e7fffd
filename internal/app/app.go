package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/config"
	"github.com/abrezinsky/slotboard/internal/feed"
	"github.com/abrezinsky/slotboard/internal/handlers"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/ratelimit"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
	"github.com/abrezinsky/slotboard/internal/services"
	"github.com/abrezinsky/slotboard/internal/websocket"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg      *config.Config
	log      logger.Logger
	repo     repository.FullRepository
	settings *services.SettingsService
	hub      *websocket.Hub
	feed     *feed.Redis
	redis    io.Closer
	handlers *handlers.Handlers
	cancel   context.CancelFunc
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	catalog, err := schedule.LoadCatalogFile(cfg.SportsFile)
	if err != nil {
		return nil, err
	}

	repo, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	admins := auth.ParseAdminList(cfg.AdminEmails)
	if len(admins.Emails()) == 0 {
		log.Warn("No admin emails configured, admin endpoints are unreachable")
	}

	// Initialize services
	rosterService := services.NewRosterService(log, repo, catalog, admins)
	lifecycleService := services.NewLifecycleService(log, repo, catalog, admins, services.Options{
		Location:   cfg.Location,
		CutoffHour: cfg.CutoffHour,
	})
	boardService := services.NewBoardService(log, repo, catalog, admins, cfg.Location)
	preferencesService := services.NewPreferencesService(log, repo, catalog)
	settingsService := services.NewSettingsService(log, repo)

	// Live updates run until Close
	runCtx, cancel := context.WithCancel(context.Background())
	hub := websocket.New(log, boardService)
	hub.Start(runCtx)

	var broadcaster services.Broadcaster = hub
	var changeFeed *feed.Redis
	var redisClient io.Closer
	if cfg.RedisURL != "" {
		client, err := feed.Dial(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			hub.Stop()
			repo.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		redisClient = client
		changeFeed = feed.New(log, client, hub)
		if err := changeFeed.Start(runCtx); err != nil {
			cancel()
			hub.Stop()
			client.Close()
			repo.Close()
			return nil, fmt.Errorf("subscribe to change feed: %w", err)
		}
		broadcaster = changeFeed
		log.Info("Change feed enabled", "channel", feed.Channel)
	}
	rosterService.SetBroadcaster(broadcaster)
	lifecycleService.SetBroadcaster(broadcaster)

	h := handlers.New(handlers.Services{
		Roster:      rosterService,
		Lifecycle:   lifecycleService,
		Board:       boardService,
		Preferences: preferencesService,
		Settings:    settingsService,
	}, auth.New([]byte(cfg.JWTSecret)), hub, log, handlers.Options{
		Limiter:       ratelimit.New(cfg.RateLimit),
		CORSOrigins:   cfg.CORSOrigins,
		SecureCookies: strings.HasPrefix(cfg.BaseURL, "https://"),
		Health:        repo,
	})

	return &App{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		settings: settingsService,
		hub:      hub,
		feed:     changeFeed,
		redis:    redisClient,
		handlers: h,
		cancel:   cancel,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.hub.Stop()
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			a.log.Warn("Failed to close change feed", "error", err)
		}
		a.redis.Close()
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
}

// Run serves HTTP on the configured port until ctx is cancelled, then
// drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	addr := a.cfg.Addr()
	boardURL := a.cfg.BaseURL
	if boardURL == "" {
		// Default to the detected LAN address so printed sheets are reachable
		boardURL = fmt.Sprintf("http://%s%s/", getPreferredIP(realNetworkProvider{}), addr)
	}
	a.setDefaultBoardURL(ctx, boardURL)

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", "url", boardURL)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setDefaultBoardURL sets the board URL setting if not already configured
// or if current value uses localhost (which isn't useful for QR codes)
func (a *App) setDefaultBoardURL(ctx context.Context, boardURL string) {
	existing, err := a.settings.GetBoardURL(ctx)
	if err != nil {
		a.log.Warn("Failed to read board_url", "error", err)
		return
	}

	if existing == "" || strings.Contains(existing, "localhost") {
		if err := a.settings.SetBoardURL(ctx, boardURL); err != nil {
			a.log.Warn("Failed to set default board_url", "error", err)
		} else {
			a.log.Info("Default board URL set", "url", boardURL)
		}
	}
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider lists network interfaces
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the address members on the club network can reach.
// Private IPv4 ranges win over other addresses; localhost is the last resort.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
