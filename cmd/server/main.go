package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shoplite/backend/internal/account"
	"shoplite/backend/internal/analyzer"
	"shoplite/backend/internal/cache"
	"shoplite/backend/internal/checkout"
	"shoplite/backend/internal/config"
	"shoplite/backend/internal/httpapi"
	"shoplite/backend/internal/kvstore"
	kvmemory "shoplite/backend/internal/kvstore/memory"
	kvpostgres "shoplite/backend/internal/kvstore/postgres"
	"shoplite/backend/internal/store/memory"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var kv kvstore.Store
	if cfg.DatabaseURL != "" {
		pg, err := kvpostgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		kv = pg
		closers = append(closers, pg.Close)
		log.Println("session store: postgres")
	} else {
		kv = kvmemory.New()
		log.Println("session store: in-memory")
	}

	cacheStore := cache.AnalyticsCache(cache.NoopAnalyticsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisAnalyticsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	repo := memory.NewSeeded()
	submitter := checkout.SimulatedSubmitter{Delay: time.Duration(cfg.OrderDelayMS) * time.Millisecond}
	checkoutMgr := checkout.NewManager(kv, submitter, cfg.TaxRate, cfg.Currency)
	accounts := account.NewManager(account.AcceptAllBackend{})
	analyzerEngine := analyzer.NewEngine(cacheStore, time.Duration(cfg.AnalyticsTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(repo, checkoutMgr, accounts, analyzerEngine, auth, cfg.AllowedOrigin, cfg.Currency)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("storefront backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
