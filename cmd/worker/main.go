package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/cache"
	"github.com/Domenick1991/travelgo/internal/email"
	"github.com/Domenick1991/travelgo/internal/kafka"
	"github.com/Domenick1991/travelgo/internal/logger"
	"github.com/Domenick1991/travelgo/internal/notification"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/service/booking"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheDuration())
	defer redisCache.Close()

	bookingService := booking.NewBookingService(
		repository.NewBookingRepository(pool),
		repository.NewFlightRepository(pool),
		log,
		booking.WithSeatLocker(redisCache, cfg.Booking.HoldTTL()),
		booking.WithProducer(producer, cfg.Kafka.BookingTopic),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Mail.Delivery == config.DeliveryQueue {
		mailer, err := notification.NewService(email.NewSender(cfg.Mail), cfg.Mail.LogoPath, log)
		if err != nil {
			log.Fatalf("notifications: %v", err)
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		g.Go(func() error {
			return consumer.Consume(gctx, func(ctx context.Context, msg kafkaGo.Message) error {
				m, err := notification.DecodeMessage(msg.Value)
				if err != nil {
					log.WithError(err).WithField("offset", msg.Offset).Warn("skipping notification")
					return nil
				}
				// Notify logs its own failures; queued mail is never retried.
				_ = mailer.Notify(ctx, m)
				return nil
			})
		})
	}

	g.Go(func() error {
		return runSweeper(gctx, cfg.Worker.ExpirationSchedule, bookingService, log)
	})

	log.Info("worker started")
	if err := g.Wait(); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Info("worker stopped")
}

func runSweeper(ctx context.Context, schedule string, svc booking.BookingUseCase, log logrus.FieldLogger) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := svc.ExpireStalePending(ctx); err != nil {
			log.WithError(err).Error("expire pending bookings")
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
