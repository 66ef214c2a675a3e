package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	userrepo "github.com/opsarch/admin-core/internal/appuser/repo"
	logrepo "github.com/opsarch/admin-core/internal/loginlog/repo"
	cfgrepo "github.com/opsarch/admin-core/internal/sysconfig/repo"
	"github.com/opsarch/admin-core/pkg/database"
	"github.com/opsarch/admin-core/pkg/utilities"
)

// db-only runner: connects, ensures the schema exists and idles until a
// signal arrives. Useful for migrations and connectivity checks without
// exposing the HTTP surface; the real service lives in cmd/api.
func main() {
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting admin-core (db only)")

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, ensure := range []func(context.Context) error{
		userrepo.NewUserRepo(db).EnsureTable,
		userrepo.NewProfileRepo(db).EnsureTable,
		logrepo.NewLogRepo(db).EnsureTable,
		cfgrepo.NewConfigRepo(db).EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			sugar.Fatalf("ensure table: %v", err)
		}
	}

	sugar.Info("schema ready; press Ctrl+C to stop")

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
