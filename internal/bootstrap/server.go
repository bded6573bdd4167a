package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/travelgo/config"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	swaggerDoc        = "/swagger/travelgo.swagger.json"
	readinessInterval = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	healthConn *grpc.ClientConn
}

// Run serves the REST API and the gRPC health service until ctx is cancelled
// or one of the servers fails.
func Run(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, api http.Handler, db Pinger) error {
	s, err := newServers(cfg, api)
	if err != nil {
		return err
	}
	defer s.healthConn.Close()

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.GRPC.Address).Info("gRPC health server listening")
		return s.grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.WithField("addr", cfg.HTTP.Address).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		watchReadiness(gctx, s.health, db, log, readinessInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newServers(cfg *config.Config, api http.Handler) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcSrv, hs)

	conn, err := grpc.NewClient(cfg.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health endpoint: %w", err)
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           newHTTPHandler(cfg.HTTP, api, grpc_health_v1.NewHealthClient(conn)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		health:     hs,
		healthConn: conn,
	}, nil
}

// newHTTPHandler puts the REST API, /healthz and the swagger docs on one mux.
func newHTTPHandler(cfg config.HTTPConfig, api http.Handler, healthClient grpc_health_v1.HealthClient) http.Handler {
	gateway := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthClient))

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/healthz", gateway)

	if cfg.SwaggerDir != "" {
		fs := http.FileServer(http.Dir(cfg.SwaggerDir))
		mux.Handle("/swagger/", http.StripPrefix("/swagger/", fs))
		mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL(swaggerDoc)))
	}
	return mux
}

// watchReadiness flips the health status with the database connectivity.
func watchReadiness(ctx context.Context, hs *health.Server, db Pinger, log logrus.FieldLogger, interval time.Duration) {
	check := func() {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err := db.Ping(ctx); err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			log.WithError(err).Warn("database unreachable")
		}
		hs.SetServingStatus("", status)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}
