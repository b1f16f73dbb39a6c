package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpx "github.com/campuslink/api/internal/http"
	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/mailer"
	"github.com/campuslink/api/internal/notify"
	"github.com/campuslink/api/internal/service/auth"
	"github.com/campuslink/api/internal/service/post"
	"github.com/campuslink/api/internal/session"
	"github.com/campuslink/api/internal/store"
	"github.com/campuslink/api/pkg/config"
	"github.com/campuslink/api/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()

	kvs, err := kv.OpenSQLite(ctx, cfg.LocalDBPath, hub)
	if err != nil {
		log.Error("failed to open local storage", "error", err)
		os.Exit(1)
	}
	defer kvs.Close()

	st := store.Select(cfg, kvs, hub, log)
	if err := st.Ping(ctx); err != nil {
		log.Warn("store ping failed at startup", "error", err)
	}

	pendings := store.NewPendingStore(kvs)
	sessions := session.NewManager(kvs, hub, log)
	defer sessions.Close()

	dispatcher := mailer.FromConfig(cfg.MailWebhookURL, log)
	notifier := notify.NewNotifier(hub, st.Remote(), cfg.PollInterval)

	authSvc := auth.New(st, pendings, sessions, dispatcher, log, cfg)
	postSvc := post.New(st, kvs, log)

	limiter := httpx.SelectRateLimiter(cfg.RateLimitRedisAddr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)

	router := httpx.NewRouter(log, authSvc, postSvc, notifier, limiter, st.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "remote_store", st.Remote())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
