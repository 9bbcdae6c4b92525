package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"identra.org/internal/config"
	"identra.org/internal/httpapi"
	"identra.org/internal/identity"
	"identra.org/internal/obs"
	"identra.org/internal/session"
	"identra.org/internal/verifier"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	store := identity.NewPGStore(db)
	idsvc := identity.NewService(store,
		identity.WithBootstrapUser(cfg.BootstrapUserID),
		identity.WithLocalContext(cfg.Region, cfg.Confederation),
	)

	verifiers := verifier.NewRegistry()
	verifiers.Register(verifier.DriverLocal, verifier.NewLocal(store.Users()))

	sessions := session.NewEngine(idsvc, verifiers,
		session.WithDriver(cfg.AuthDriver),
		session.WithTTL(cfg.TokenTTL),
		session.WithTokenSecret(cfg.TokenSecret),
	)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, idsvc, sessions,
		httpapi.WithRateLimit(cfg.RateLimitBurst, cfg.RateLimitPerSecond))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting identra-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
