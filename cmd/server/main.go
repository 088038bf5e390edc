package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/canteen-engine/internal/adapter/handler"
	"github.com/rl1809/canteen-engine/internal/adapter/storage"
	"github.com/rl1809/canteen-engine/internal/config"
	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/core/service"
	"github.com/rl1809/canteen-engine/internal/logger"
)

const initialStock = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()
	log.Info("store ready", zap.String("driver", cfg.Store.Driver))

	if cfg.Store.SeedMenu {
		if _, err := service.SeedMenu(ctx, store, domain.DefaultMenu(initialStock), log); err != nil {
			log.Fatal("failed to seed menu", zap.Error(err))
		}
	}

	retry := service.RetryPolicy{
		MaxAttempts: cfg.Order.MaxAttempts,
		BaseBackoff: cfg.Order.BaseBackoff,
		MaxBackoff:  cfg.Order.MaxBackoff,
	}
	orderService := service.NewOrderService(store, retry, log)
	bookingService := service.NewBookingService(store, retry, log)
	forumService := service.NewForumService(store, retry, cfg.Forum.Channels, log)
	reportingService := service.NewReportingService(store)

	// gRPC
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(log)))
		handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService))
		healthpb.RegisterHealthServer(grpcServer, health.NewServer())

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		}
		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHTTPHandler(orderService, bookingService, forumService, reportingService, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.NewRouter(httpHandler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
	}
}
