// api/routes/router.go
package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "eventix/docs"
	"eventix/internal/auth"
	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/notifications"
	"eventix/internal/payments"
	"eventix/internal/realtime"
	"eventix/internal/seats"
	"eventix/internal/shared/config"
	"eventix/internal/shared/database"
	"eventix/internal/shared/database/memory"
	"eventix/internal/users"
	"eventix/pkg/cache"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// repositories groups the persistence backends selected by STORAGE_DRIVER
type repositories struct {
	users    users.Repository
	events   events.Repository
	seats    seats.Repository
	bookings bookings.Repository
}

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	logger *logger.Logger

	cache     cache.Service
	hub       *realtime.Hub
	broker    *realtime.RedisBroker
	publisher realtime.Publisher

	notifications *notifications.NotificationService
	jobs          *bookings.JobProcessor

	authController    *auth.Controller
	eventController   events.Controller
	seatController    *seats.Controller
	bookingController *bookings.Controller
	paymentController *payments.Controller
	realtimeHandler   *realtime.Handler

	cancelBackground context.CancelFunc
}

// NewRouter wires every service. db may carry only Redis, or nothing at all,
// when the memory storage driver is selected.
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger) (*Router, error) {
	if db == nil {
		db = &database.DB{}
	}
	r := &Router{
		config: cfg,
		db:     db,
		logger: log,
		hub:    realtime.NewHub(log.WithComponent("realtime")),
	}

	repos, err := r.selectRepositories()
	if err != nil {
		return nil, err
	}

	if db.Redis != nil {
		r.cache = cache.NewService(db.Redis, log)
	}

	r.publisher = r.hub
	if cfg.Realtime.UseRedis && db.Redis != nil {
		r.broker = realtime.NewRedisBroker(db.Redis, r.hub, log.WithComponent("realtime"))
		r.publisher = r.broker
	}

	notificationService, err := notifications.NewNotificationService(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	r.notifications = notificationService

	gateway, err := payments.NewGateway(cfg, log)
	if err != nil {
		_ = notificationService.Stop()
		return nil, fmt.Errorf("payments: %w", err)
	}

	r.setupServices(repos, gateway)
	return r, nil
}

func (r *Router) selectRepositories() (repositories, error) {
	if r.config.UsesMemoryStorage() {
		r.logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.New()
		return repositories{users: store, events: store, seats: store, bookings: store}, nil
	}

	pg := r.db.PostgreSQL
	if pg == nil {
		return repositories{}, errors.New("postgres storage selected but no database connection")
	}
	return repositories{
		users:    users.NewRepository(pg),
		events:   events.NewRepository(pg),
		seats:    seats.NewRepository(pg),
		bookings: bookings.NewRepository(pg),
	}, nil
}

func (r *Router) setupServices(repos repositories, gateway payments.Gateway) {
	cfg := r.config

	authService := auth.NewService(repos.users, cfg, r.logger)
	r.authController = auth.NewController(authService)

	eventService := events.NewService(repos.events, r.cache, cfg.Redis.CacheTTL, r.logger.WithComponent("events"))
	r.eventController = events.NewController(eventService)

	// Every committed seat batch drops the cached seat map and event detail
	ledger := seats.NewLedger(repos.seats,
		seats.WithOnChange(seats.InvalidateSeatMap(r.cache, r.logger)),
		seats.WithOnChange(eventService.InvalidateEvent),
	)

	seatService := seats.NewService(repos.seats, ledger, eventService, r.publisher, r.cache, cfg.Booking.SeatLockTTL, r.logger.WithComponent("seats"))
	r.seatController = seats.NewController(seatService)

	bookingService := bookings.NewService(bookings.Dependencies{
		Repo:      repos.bookings,
		Ledger:    ledger,
		Events:    repos.events,
		Users:     repos.users,
		Gateway:   gateway,
		Publisher: r.publisher,
		Mailer:    notifications.NewBookingMailer(r.notifications),
		Signer:    bookings.NewVerificationSigner(cfg.Booking.VerificationSecret, cfg.JWT.Issuer),
		Logger:    r.logger.WithComponent("bookings"),
	}, bookings.Config{
		PendingTTL:           cfg.Booking.PendingTTL,
		ReferenceMaxAttempts: cfg.Booking.ReferenceMaxAttempts,
		Currency:             cfg.Booking.Currency,
		CheckInGrace:         cfg.Booking.CheckInGrace,
		QRCodeSize:           cfg.Booking.QRCodeSize,
	})
	r.bookingController = bookings.NewController(bookingService)

	r.paymentController = payments.NewController(gateway,
		bookings.NewPaymentAdapter(bookingService, r.logger),
		cfg.Stripe.WebhookSecret, r.logger.WithComponent("payments"))

	r.jobs = bookings.NewJobProcessor(bookingService, &bookings.JobConfig{
		ExpiryCheckInterval: cfg.Booking.ExpiryCheckInterval,
		BatchSize:           cfg.Booking.ExpiryBatchSize,
	}, r.logger)

	r.realtimeHandler = realtime.NewHandler(r.hub, r.publisher, cfg, r.logger.WithComponent("realtime"))
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	if r.config.Swagger.Enabled {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := engine.Group(r.config.GetAPIBasePath())
	{
		auth.SetupAuthRoutes(api, r.authController, r.config)
		events.SetupEventRoutes(api, r.eventController, r.config)
		seats.SetupSeatRoutes(api, r.seatController, r.config)
		bookings.SetupBookingRoutes(api, r.bookingController, r.config)
		payments.SetupPaymentRoutes(api, r.paymentController, r.config)

		api.GET("/ws", r.realtimeHandler.ServeWS) // GET /api/v1/ws
	}
}

// Start launches the background workers: the cross-instance realtime
// subscription, the notification consumer and the expiry job.
func (r *Router) Start(ctx context.Context) {
	ctx, r.cancelBackground = context.WithCancel(ctx)

	if r.broker != nil {
		go func() {
			if err := r.broker.Run(ctx, nil); err != nil && ctx.Err() == nil {
				r.logger.Error("Realtime broker stopped", "error", err.Error())
			}
		}()
	}
	r.notifications.Start(ctx)
	r.jobs.Start(ctx)
}

// Stop halts the background workers started by Start
func (r *Router) Stop() {
	if r.cancelBackground != nil {
		r.cancelBackground()
	}
	r.jobs.Stop()
	if err := r.notifications.Stop(); err != nil {
		r.logger.Error("Error stopping notification service", "error", err.Error())
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "eventix-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "eventix-backend",
			"storage":   r.config.Storage.Driver,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"jobs":        r.jobs.GetJobStatus(),
		})
	})
}
