package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/agency"
	"github.com/ukydev/fleet-rental/internal/auth"
	"github.com/ukydev/fleet-rental/internal/config"
	"github.com/ukydev/fleet-rental/internal/db"
	"github.com/ukydev/fleet-rental/internal/events"
	"github.com/ukydev/fleet-rental/internal/handlers"
	"github.com/ukydev/fleet-rental/internal/logger"
	"github.com/ukydev/fleet-rental/internal/middleware"
	"github.com/ukydev/fleet-rental/internal/models"
	"github.com/ukydev/fleet-rental/internal/source"
)

func operatorsFromConfig(cfg *config.Config) []models.Operator {
	if cfg.OperatorPasswordHash == "" {
		log.Warn("OPERATOR_PASSWORD_HASH not set, fleet loading over HTTP is disabled")
		return nil
	}
	return []models.Operator{{
		Username:     cfg.OperatorUsername,
		PasswordHash: cfg.OperatorPasswordHash,
		Role:         models.RoleOperator,
	}}
}

// restoreFleet inserts every stored vehicle before any file is loaded, so
// stored entries win over file duplicates.
func restoreFleet(ctx context.Context, a *agency.Agency, store db.VehicleCollection) error {
	vehicles, err := db.LoadVehicles(ctx, store)
	if err != nil {
		return err
	}
	restored := 0
	for _, v := range vehicles {
		if a.Insert(v) {
			restored++
		}
	}
	log.WithFields(log.Fields{"stored": len(vehicles), "restored": restored}).Info("Fleet restored from MongoDB")
	return nil
}

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store db.VehicleCollection
	if cfg.MongoEnabled {
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer client.Disconnect(context.Background())
		store = &db.MongoCollection{Collection: client.Database(cfg.MongoDB).Collection(cfg.MongoCollection)}
		log.WithField("db", cfg.MongoDB).Info("Connected to MongoDB")
	}

	fleet := agency.New(cfg.AgencyName, agency.WithStrictTags(cfg.StrictTypeTags))

	if store != nil {
		if err := restoreFleet(ctx, fleet, store); err != nil {
			log.WithError(err).Error("Failed to restore fleet")
		}
	}

	// attached after the restore so stored vehicles are not announced again
	if cfg.MQTTEnabled {
		client, err := events.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer client.Disconnect(250)
		fleet.AddListener(events.NewPublisher(client, cfg.MQTTTopic, cfg.AgencyName))
		log.WithField("topic", cfg.MQTTTopic).Info("Publishing fleet events")
	}

	if cfg.FleetFile != "" {
		report, err := fleet.LoadFrom(source.FromFile(cfg.FleetFile))
		if err != nil {
			log.WithError(err).WithField("file", cfg.FleetFile).Error("Failed to read fleet file")
		}
		for _, f := range report.Failures {
			log.WithFields(log.Fields{"line": f.Line, "text": f.Text}).Warn(f.Reason)
		}
		if store != nil {
			if err := db.SaveVehicles(ctx, store, report.Added); err != nil {
				log.WithError(err).Error("Failed to persist fleet file")
			}
		}
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, operatorsFromConfig(cfg)...)
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	router := handlers.NewRouter(
		handlers.NewFleetHandler(fleet, store),
		handlers.NewAuthHandler(authService),
		middleware.NewAuthMiddleware(authService),
		middleware.NewRateLimitMiddleware(cfg.TrustProxy),
		cfg.PublicReads,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "agency": cfg.AgencyName, "vehicles": fleet.Len()}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("HTTP server stopped")
}
