package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/travelgo/api"
	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/bootstrap"
	"github.com/Domenick1991/travelgo/internal/cache"
	"github.com/Domenick1991/travelgo/internal/email"
	"github.com/Domenick1991/travelgo/internal/kafka"
	"github.com/Domenick1991/travelgo/internal/logger"
	"github.com/Domenick1991/travelgo/internal/notification"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/service/booking"
	"github.com/Domenick1991/travelgo/internal/service/flights"
	"github.com/Domenick1991/travelgo/internal/service/foodorders"
	"github.com/Domenick1991/travelgo/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheDuration())
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	notifier, err := newNotifier(cfg, producer, log)
	if err != nil {
		log.Fatalf("notifications: %v", err)
	}

	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	foodOrderRepo := repository.NewFoodOrderRepository(pool)

	opts := append(booking.ConfigOptions(cfg.Booking),
		booking.WithSeatLocker(redisCache, cfg.Booking.HoldTTL()),
		booking.WithProducer(producer, cfg.Kafka.BookingTopic),
		booking.WithNotifier(notifier, cfg.Booking.NotificationTimeoutDuration()),
	)
	bookingService := booking.NewBookingService(bookingRepo, flightRepo, log, opts...)
	flightService := flights.NewFlightService(flightRepo, redisCache, log)
	foodOrderService := foodorders.NewFoodOrderService(foodOrderRepo)

	if err := validation.RegisterGin(); err != nil {
		log.Fatalf("register validators: %v", err)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(log, api.Services{
		Flights:    flightService,
		Bookings:   bookingService,
		FoodOrders: foodOrderService,
	})

	if err := bootstrap.Run(ctx, cfg, log, router, pool); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// newNotifier sends mail from the request process in direct mode and hands
// it to the worker in queue mode.
func newNotifier(cfg *config.Config, producer *kafka.Producer, log logrus.FieldLogger) (booking.Notifier, error) {
	if cfg.Mail.Delivery == config.DeliveryQueue {
		return notification.NewQueueNotifier(producer, cfg.Kafka.NotificationsTopic, log), nil
	}
	return notification.NewService(email.NewSender(cfg.Mail), cfg.Mail.LogoPath, log)
}
