package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rodovar-GPS/GPS/internal/config"
	"github.com/Rodovar-GPS/GPS/internal/events"
	"github.com/Rodovar-GPS/GPS/internal/geocode"
	"github.com/Rodovar-GPS/GPS/internal/handler"
	"github.com/Rodovar-GPS/GPS/internal/metrics"
	"github.com/Rodovar-GPS/GPS/internal/middleware"
	"github.com/Rodovar-GPS/GPS/internal/service"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

const (
	requestTimeout = 10 * time.Second

	// uploadsPrefix is exempt from the request timeout.
	uploadsPrefix = "/api/v1/admin/uploads"
)

// DBError represents a database-related error.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error during %q: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// App holds the application-level dependencies.
type App struct {
	Router  *gin.Engine
	Backend *storage.Backend
	// DB is nil in local mode.
	DB        *pgxpool.Pool
	Metrics   *metrics.Collector
	publisher events.Publisher
	cfg       *config.Config
}

// New resolves the storage backend, wires every service and configures the
// HTTP engine. In cloud mode it connects to Postgres and runs migrations
// first; otherwise documents live in the local JSON file.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}
	if cfg.MetricsEnabled {
		a.Metrics = metrics.NewCollector()
	}

	if err := a.openBackend(); err != nil {
		return nil, err
	}
	log.Printf("storage backend: %s", a.Backend.Kind)

	defaults, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("app: load settings: %w", err)
	}

	if err := a.openPublisher(); err != nil {
		a.Shutdown()
		return nil, err
	}

	// --- Domain dependencies ---
	store := a.Backend.Store
	shipmentsRepo := storage.NewShipmentsRepository(store)
	driversRepo := storage.NewDriversRepository(store)
	usersRepo := storage.NewUsersRepository(store)

	locator := geocode.NewLocator(a.newGeocoder(), cfg.GeocodeCountry)

	authService := service.NewAuthService(
		usersRepo, storage.NewRefreshTokensRepository(store),
		cfg.JWTSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.DriverTokenTTL,
	)
	users := service.NewUserService(usersRepo, authService)
	shipments := service.NewShipmentService(shipmentsRepo, driversRepo, locator, a.publisher)
	drivers := service.NewDriverService(driversRepo)
	tracking := service.NewTrackingService(shipmentsRepo, cfg.TruckSpeedKmh, a.Metrics)
	trips := service.NewTripService(shipments, authService, locator, a.publisher, a.Metrics)
	settings := service.NewSettingsService(storage.NewSettingsRepository(store), defaults)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := users.Bootstrap(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("app: bootstrap admin: %w", err)
	}

	// --- HTTP engine ---
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if a.Metrics != nil {
		router.Use(middleware.HTTPMetrics(a.Metrics))
	}
	router.Use(middleware.Timeout(requestTimeout, uploadsPrefix))

	handler.Register(router, handler.Handlers{
		Public: handler.NewPublicHandler(tracking, settings),
		Auth:   handler.NewAuthHandler(authService),
		Driver: handler.NewDriverHandler(trips, shipments),
		Admin: handler.NewAdminHandler(handler.AdminServices{
			Shipments: shipments,
			Drivers:   drivers,
			Fleet:     service.NewFleetService(driversRepo),
			Tracking:  tracking,
			Trips:     trips,
			Users:     users,
			Settings:  settings,
			Locator:   locator,
		}),
		Upload: handler.NewUploadHandler(cfg.UploadDir),
	}, authService, a.Metrics)

	a.Router = router
	return a, nil
}

// openBackend picks the persistence mode once for the process lifetime.
func (a *App) openBackend() error {
	if !a.cfg.CloudMode() {
		b, err := storage.NewLocalBackend(a.cfg.LocalStorePath)
		if err != nil {
			return fmt.Errorf("app: open local store: %w", err)
		}
		a.Backend = b
		return nil
	}

	pool, err := connectDB(a.cfg.DBDSN)
	if err != nil {
		return err
	}
	log.Println("database connection pool established")

	if err := storage.RunMigrations(context.Background(), pool); err != nil {
		pool.Close()
		return fmt.Errorf("app: run migrations: %w", err)
	}
	log.Println("database schema up to date")

	a.DB = pool
	a.Backend = storage.NewCloudBackend(pool)
	return nil
}

func connectDB(dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &DBError{Op: "parse_dsn", Err: err}
	}
	poolCfg.MaxConns = 20
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &DBError{Op: "connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &DBError{Op: "ping", Err: err}
	}
	return pool, nil
}

// openPublisher connects to NATS when NATS_URL is set.
func (a *App) openPublisher() error {
	if a.cfg.NATSURL == "" {
		a.publisher = events.NopPublisher{}
		return nil
	}
	p, err := events.NewNATSPublisher(a.cfg.NATSURL, a.cfg.NATSSubjectPrefix, a.Metrics)
	if err != nil {
		return fmt.Errorf("app: connect nats: %w", err)
	}
	log.Printf("publishing events to %s under %q", a.cfg.NATSURL, a.cfg.NATSSubjectPrefix)
	a.publisher = p
	return nil
}

// newGeocoder builds Nominatim behind the reverse-geocode cache. The cache
// lives in Postgres in cloud mode and in memory otherwise.
func (a *App) newGeocoder() geocode.Geocoder {
	nominatim := geocode.NewNominatimGeocoder(
		a.cfg.NominatimURL,
		a.cfg.GeocoderUserAgent,
		geocode.WithObserver(a.Metrics.GeocodeObserve),
	)

	var cache geocode.CacheStore
	if a.DB != nil {
		cache = geocode.NewPgCacheStore(a.DB)
	} else {
		cache = geocode.NewMemCacheStore()
	}
	return geocode.NewCachedGeocoder(nominatim, cache,
		geocode.WithLogger(log.Printf),
		geocode.WithHitCounter(a.Metrics.GeocodeCacheHitInc),
	)
}

// Shutdown closes the publisher, the store and the database pool.
func (a *App) Shutdown() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.Backend.Close(); err != nil {
		log.Printf("close storage backend: %v", err)
	}
	if a.DB != nil {
		a.DB.Close()
		log.Println("database connection pool closed")
	}
}
