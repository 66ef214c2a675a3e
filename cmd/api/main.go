package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opsarch/admin-core/internal/appuser"
	userrepo "github.com/opsarch/admin-core/internal/appuser/repo"
	"github.com/opsarch/admin-core/internal/auth"
	"github.com/opsarch/admin-core/internal/gencode"
	genrepo "github.com/opsarch/admin-core/internal/gencode/repo"
	"github.com/opsarch/admin-core/internal/loginlog"
	logrepo "github.com/opsarch/admin-core/internal/loginlog/repo"
	"github.com/opsarch/admin-core/internal/monitor"
	"github.com/opsarch/admin-core/internal/online"
	"github.com/opsarch/admin-core/internal/router"
	"github.com/opsarch/admin-core/internal/sysconfig"
	cfgrepo "github.com/opsarch/admin-core/internal/sysconfig/repo"
	"github.com/opsarch/admin-core/pkg/cache"
	"github.com/opsarch/admin-core/pkg/database"
	"github.com/opsarch/admin-core/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting admin-core")

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis is optional: the service runs degraded without it.
	redis := cache.New(cache.ConfigFromEnv(), sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repositories
	userRepo := userrepo.NewUserRepo(db)
	profileRepo := userrepo.NewProfileRepo(db)
	logRepo := logrepo.NewLogRepo(db)
	configRepo := cfgrepo.NewConfigRepo(db)
	metaRepo := genrepo.NewMetaRepo(db)

	for _, ensure := range []func(context.Context) error{
		userRepo.EnsureTable,
		profileRepo.EnsureTable,
		logRepo.EnsureTable,
		configRepo.EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			sugar.Fatalf("ensure table: %v", err)
		}
	}

	// services
	recorder := monitor.NewRecorder(redis, sugar)
	logSvc := loginlog.NewService(logRepo, redis, loginlog.RetentionFromEnv(), sugar)
	configSvc := sysconfig.NewService(configRepo, redis, sugar)
	userSvc := appuser.NewService(userRepo, profileRepo, logSvc, redis, recorder, sugar)
	tokenCfg := auth.TokenConfigFromEnv()
	captchaSvc := auth.NewCaptchaService(redis, sugar)
	authSvc := auth.NewService(tokenCfg, userRepo, userSvc, captchaSvc, logSvc, configSvc, redis, recorder, sugar)
	onlineSvc := online.NewService(tokenCfg, redis, sugar)
	cacheSvc := monitor.NewCacheService(redis, sugar)

	if err := configSvc.Refresh(ctx); err != nil {
		sugar.Warnf("config cache refresh: %v", err)
	}
	logSvc.StartPurgeLoop(ctx)

	handler := router.RegisterRoutes(router.Deps{
		Auth:      auth.NewHandler(authSvc, sugar),
		AuthSvc:   authSvc,
		TokenCfg:  tokenCfg,
		Users:     appuser.NewHandler(userSvc, sugar),
		LoginLogs: loginlog.NewHandler(logSvc, sugar),
		Online:    online.NewHandler(onlineSvc, sugar),
		Configs:   sysconfig.NewHandler(configSvc, sugar),
		Monitor:   monitor.NewHandler(cacheSvc, recorder, sugar),
		Gen:       gencode.NewHandler(metaRepo, sugar),
		Recorder:  recorder,
		Logger:    sugar,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
