package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HijosDelDiablo/food-orders/internal/adapter/handler"
	"github.com/HijosDelDiablo/food-orders/internal/adapter/storage"
	"github.com/HijosDelDiablo/food-orders/internal/config"
	"github.com/HijosDelDiablo/food-orders/internal/core/service"
	"github.com/HijosDelDiablo/food-orders/internal/logging"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	cache := storage.NewRedisAdapter(rdb)
	orderRepo := storage.NewMySQLOrderRepository(db)
	productRepo := storage.NewMySQLProductRepository(db)
	userRepo := storage.NewMySQLUserRepository(db)

	// Warm the stock cache from the catalog so the fast-fail tier covers
	// every known product from the first request.
	products, err := productRepo.ListProducts(ctx)
	if err != nil {
		logger.Fatal("failed to list products", zap.Error(err))
	}
	for _, p := range products {
		if err := cache.SetStock(ctx, p.ID, p.Stock); err != nil {
			logger.Fatal("failed to warm stock cache", zap.String("product_id", p.ID), zap.Error(err))
		}
	}
	logger.Info("stock cache warmed", zap.Int("products", len(products)))

	orderService := service.NewOrderService(orderRepo, productRepo, userRepo, cache, logger)
	httpHandler := handler.NewHTTPHandler(orderService, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
