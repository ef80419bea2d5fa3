package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/coastie-uk/convention-auction/internal/cache"
	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/handler"
	"github.com/coastie-uk/convention-auction/internal/middleware"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/router"
	"github.com/coastie-uk/convention-auction/internal/service"
	"github.com/coastie-uk/convention-auction/internal/sumup"
)

const (
	publishBuffer  = 1024
	expiryInterval = time.Minute
)

func main() {
	cfg := config.Load()
	slog.SetDefault(config.NewLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RateLimit.Enabled || cfg.StateCache.Backend == "redis" {
		rdb = config.NewRedisClient(cfg.Redis)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var states cache.StateCache
	if cfg.StateCache.Backend == "redis" && rdb != nil {
		states = cache.NewRedis(rdb, cfg.StateCache.Prefix, cfg.StateCache.TTL)
	} else {
		mem, err := cache.NewMemory(cfg.StateCache.Size, cfg.StateCache.TTL)
		if err != nil {
			return err
		}
		states = mem
	}

	var events service.EventPublisher = service.NopPublisher{}
	var publisher *service.AMQPPublisher
	if cfg.AMQP.URL != "" {
		publisher = service.NewAMQPPublisher(cfg.AMQP, publishBuffer)
		events = publisher
	}

	repos := service.NewRepos(db)
	audit := service.NewAuditTrail(repos.Audit)
	guard := service.NewAuctionStateGuard(repos.Auctions, repos.Items, states)
	provider := sumup.NewClient(cfg.SumUp, cfg.PublicBaseURL+"/payments/sumup/webhook")

	admin := service.NewAuctionAdmin(db, repos, guard, audit, events)
	catalogue := service.NewCatalogue(db, repos, guard, audit)
	lots := service.NewLotLedger(db, repos, guard, audit, events)
	payments := service.NewPaymentReconciler(db, repos, guard, audit, events, provider, cfg.SumUp, cfg.PublicBaseURL)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	items := handler.NewItemHandler(catalogue, lots)
	router.RegisterRoutes(e, handler.NewHealthHandler(db), items)
	router.RegisterStaff(e, router.StaffHandlers{
		Auctions: handler.NewAuctionHandler(admin),
		Items:    items,
		Lots:     handler.NewLotHandler(lots),
		Audit:    handler.NewAuditHandler(audit),
	}, cfg.JWTSecret)
	router.RegisterPayments(e, handler.NewPaymentHandler(payments), cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))

	audit.Record(ctx, model.System.Username, "server started", model.ObjectServer, 0, map[string]any{"env": cfg.Env})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		slog.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env), slog.String("db", cfg.DB.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCancel(payments.RunExpirySweeper(gctx, expiryInterval))
	})
	if publisher != nil {
		g.Go(func() error { return ignoreCancel(publisher.Run(gctx)) })
	}
	if cfg.AMQP.ConsumerEnabled() {
		g.Go(func() error { return ignoreCancel(queue.StartEventConsumer(gctx, cfg.AMQP.URL, cfg.AMQP.Queue)) })
	}
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
