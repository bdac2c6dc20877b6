package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/timeplus-io/tp-monitor-engine/pkg/alerts"
	"github.com/timeplus-io/tp-monitor-engine/pkg/api"
	"github.com/timeplus-io/tp-monitor-engine/pkg/config"
	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/notification"
	"github.com/timeplus-io/tp-monitor-engine/pkg/retry"
	"github.com/timeplus-io/tp-monitor-engine/pkg/services"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// @title Timeplus Monitor Engine API
// @version 1.0
// @description API for scheduled monitors and their alerts over Timeplus streams
// @BasePath /api

func main() {
	// Configure Log Level from Environment Variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(logLevelStr) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Set up the Timeplus client
	tpClient, err := timeplus.NewClient(&cfg.Timeplus)
	if err != nil {
		logrus.Fatalf("Failed to create Timeplus client: %v", err)
	}

	// Set up required streams with proper schemas
	ctx := context.Background()
	if err := tpClient.SetupStreams(ctx); err != nil {
		logrus.Fatalf("Failed to set up streams: %v", err)
	}

	// Wire the alert lifecycle
	store := alerts.NewTimeplusStore(tpClient, cfg.Alerting.AlertHistoryEnabled)
	saveDelay, saveCount := cfg.Alerting.AlertBackoff()
	moveDelay, moveCount := cfg.Alerting.MoveAlertsBackoff()
	alertService := services.NewAlertService(store,
		retry.ConstantBackoff(saveDelay, saveCount),
		retry.ExponentialBackoff(moveDelay, moveCount))

	allowedTypes := make([]models.DestinationType, 0, len(cfg.Alerting.AllowedDestinations))
	for _, t := range cfg.Alerting.AllowedDestinations {
		parsed, err := models.ParseDestinationType(t)
		if err != nil {
			logrus.Fatalf("Invalid allowed destination type: %v", err)
		}
		allowedTypes = append(allowedTypes, parsed)
	}
	publisher := notification.NewHTTPPublisher(cfg.Alerting.RequestTimeout(), notification.Restrictions{
		AllowedTypes: allowedTypes,
		DeniedHosts:  cfg.Alerting.DeniedHosts,
	})

	runner := services.NewMonitorRunner(
		alertService,
		services.NewInputService(tpClient),
		services.NewTriggerService(services.NewExprEvaluator()),
		services.NewActionService(publisher, services.NewStaticDestinations(cfg.Alerting.Destinations)),
	)
	scheduler := services.NewScheduler(runner)

	monitorService, err := services.NewMonitorService(tpClient, scheduler, runner)
	if err != nil {
		logrus.Fatalf("Failed to create monitor service: %v", err)
	}

	// Set up the router
	router := mux.NewRouter()
	apiHandler := api.NewAPIHandler(monitorService, alertService)
	apiHandler.RegisterRoutes(router)

	// Swagger documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler())

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})

	// Create HTTP server
	// Use PORT environment variable if available, otherwise use config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      corsWrapper.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Stop scheduling new runs and wait for in-flight runs to finish
	scheduler.Stop()
	runner.Stop()
	logrus.Info("Scheduler and runner shutdown complete")

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Shutdown the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := tpClient.Close(); err != nil {
		logrus.Warnf("Error closing Timeplus client: %v", err)
	}

	logrus.Info("Server exited properly")
}
