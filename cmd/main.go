package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"leadgenBack/internal/config"
	"leadgenBack/internal/logging"
	"leadgenBack/internal/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	runMigrations := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Infof("no .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	db, err := openDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	if *runMigrations {
		if err := migrations.Up(db, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("redis at %s is not reachable yet: %v", cfg.Redis.Addr, err)
	}

	app, err := initializeApp(ctx, cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer app.close()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		app.runner.Run(ctx)
	}()

	scheduler, err := app.startScheduler(ctx)
	if err != nil {
		logger.Fatalf("scheduler: %v", err)
	}
	startHoldbackReleaser(ctx, app.payoutService, app.payoutCfg.ReleaseInterval, logger)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
	})

	errorLog := logger.WriterLevel(logrus.ErrorLevel)
	defer errorLog.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     log.New(errorLog, "", 0),
		Handler:      c.Handler(app.routes()),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		<-scheduler.Stop().Done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.Infof("Starting server on %s", cfg.Server.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
	<-shutdownDone
	select {
	case <-runnerDone:
	case <-time.After(30 * time.Second):
		logger.Warn("job runner did not stop within 30s")
	}
	logger.Info("server stopped")
}

func openDB(driver, dsn string, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	logger.Info("Successfully connected to database")
	return db, nil
}
