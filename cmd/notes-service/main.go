package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/praxia-health/notes-platform/pkg/common/config"
	"github.com/praxia-health/notes-platform/pkg/common/database"
	"github.com/praxia-health/notes-platform/pkg/common/kafka"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/notes"
	"github.com/praxia-health/notes-platform/pkg/validation"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := notes.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate note tables")
	}

	cache := notes.NewCache(database.GetRedis(), cfg.NoteCacheTTL)
	producer := kafka.NewProducer(cfg.NotesTopic)
	defer producer.Close()

	catalog, err := notes.LoadCatalog(cfg.TemplateCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load note template catalog")
	}

	service := notes.NewService(repo, cache, producer, catalog)
	signatures := notes.NewSignatureService(repo, cache, producer)
	versions := notes.NewVersioningService(repo, cache, producer)

	collaborator := validation.NewHTTPCollaborator(cfg.ValidationBaseURL, cfg.ValidationAPIKey, cfg.ValidationTimeout)
	gateway := validation.NewGateway(collaborator, repo, cache, producer)

	handler := notes.NewHandler(service, signatures, versions, gateway)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Notes service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start notes service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down notes service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Notes service forced to shutdown")
	}
	logger.Log.Info("Notes service stopped")
}
