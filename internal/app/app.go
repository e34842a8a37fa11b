// Package app assembles the storefront from its configuration: database,
// device storage, change broker, services and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/checkout"
	"veggiemarket/internal/config"
	"veggiemarket/internal/logger"
	"veggiemarket/internal/middleware"
	"veggiemarket/internal/realtime"
	"veggiemarket/internal/repositories"
	"veggiemarket/internal/services"
	"veggiemarket/internal/session"
	"veggiemarket/internal/storage"
	"veggiemarket/internal/validation"
	"veggiemarket/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// App is a fully wired storefront.
type App struct {
	Fiber    *fiber.App
	Config   *config.Config
	DB       *gorm.DB
	Broker   realtime.Broker
	MQ       *rabbitmq.Client // nil when rabbitmq.url is empty
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Sessions *session.Manager
	Limiter  *middleware.RateLimiter

	cache   *catalog.Cache
	closers []func() error
}

// New builds the application described by cfg.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	log := logger.L()

	// --- Database ---
	a.DB, err = repositories.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if sqlDB, dbErr := a.DB.DB(); dbErr == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err = repositories.Migrate(a.DB); err != nil {
		return nil, err
	}

	productRepo := repositories.NewGORMProductRepository(a.DB)
	orderRepo := repositories.NewGORMOrderRepository(a.DB)
	profileRepo := repositories.NewGORMProfileRepository(a.DB)

	if cfg.Database.Seed {
		if err = repositories.SeedProducts(ctx, productRepo); err != nil {
			return nil, err
		}
	}

	// --- Device storage ---
	store, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	// --- Change broker ---
	onError := func(c realtime.Change, err error) {
		log.Warn("change handler failed",
			zap.String("table", c.Table),
			zap.String("op", string(c.Op)),
			zap.String("id", c.ID),
			zap.Error(err))
	}
	var events services.OrderEventPublisher
	if cfg.RabbitMQ.URL != "" {
		a.MQ, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Logger: log})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.MQ.Close)
		broker, brokerErr := realtime.NewAMQPBroker(a.MQ, onError)
		if brokerErr != nil {
			return nil, brokerErr
		}
		a.Broker = broker
		events = a.MQ
	} else {
		a.Broker = realtime.NewLocalBroker(onError)
	}
	a.closers = append(a.closers, a.Broker.Close)

	// --- Catalog ---
	locale, err := language.Parse(cfg.Catalog.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog.locale %q: %w", cfg.Catalog.Locale, err)
	}
	a.cache = catalog.NewCache()
	engine := catalog.NewEngine(locale)

	unit, err := currency.ParseISO(cfg.Checkout.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid checkout.currency %q: %w", cfg.Checkout.Currency, err)
	}
	calculator := checkout.Calculator{
		TaxRate:               cfg.Checkout.TaxRate,
		FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
		FlatShippingFee:       cfg.Checkout.FlatShippingFee,
		Currency:              unit,
	}

	// --- Services ---
	validate := validation.New()
	a.Auth = services.NewAuthService(profileRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.Products = services.NewProductService(productRepo, a.cache, engine, a.Broker)
	a.Orders = services.NewOrderService(orderRepo, productRepo, a.Products, calculator, a.Broker, events, validate)

	var verifier session.CredentialVerifier = a.Auth
	if cfg.Auth.Mode == "static" {
		verifier = session.NewStaticVerifier(session.DemoAccounts()...)
	} else if cfg.Database.Seed {
		if err = a.Auth.SeedAccounts(ctx, session.DemoAccounts()...); err != nil {
			return nil, err
		}
	}
	var opts []session.Option
	if cfg.Auth.Latency > 0 {
		opts = append(opts, session.WithLatency(cfg.Auth.Latency))
	}
	a.Sessions = session.NewManager(verifier, store, opts...)

	a.Broker.Subscribe(realtime.TableProducts, a.cache.HandleChange)
	a.Broker.Subscribe(realtime.TableProducts, a.Sessions.HandleProductChange)

	if loadErr := a.Products.LoadCatalog(ctx); loadErr != nil {
		log.Warn("catalog not loaded at startup, will retry on first browse", zap.Error(loadErr))
	}

	// --- HTTP ---
	a.Limiter = middleware.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst)
	a.Fiber = fiber.New(fiber.Config{
		AppName:      "veggiemarket",
		ErrorHandler: errorHandler,
	})
	a.routes(validate)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (storage.KeyValue, error) {
	switch a.Config.Storage.Driver {
	case "memory":
		return storage.NewMemory(), nil
	case "redis":
		r, err := storage.NewRedis(ctx, a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return storage.NewGORM(a.DB), nil
	}
}

// Close releases the broker, message bus, device storage and database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// health reports liveness plus the state of the catalog snapshot.
func (a *App) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "healthy",
		"time":           time.Now().Format(time.RFC3339),
		"catalog_loaded": a.cache.Loaded(),
		"sessions":       a.Sessions.Len(),
		"broker":         a.brokerName(),
	})
}

func (a *App) brokerName() string {
	if a.MQ != nil {
		return "rabbitmq"
	}
	return "local"
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.FromCtx(c.UserContext()).Error("unhandled error", zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{
		"message": err.Error(),
	})
}
