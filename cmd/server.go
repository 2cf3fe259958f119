package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/taskboard/api"
	"example.com/taskboard/domain"
	"example.com/taskboard/eventbus"
	"example.com/taskboard/eventstore"
	"example.com/taskboard/handlers"
	"example.com/taskboard/messaging"
	"example.com/taskboard/projections"
	"example.com/taskboard/queries"
	"example.com/taskboard/repository"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting server")

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	// Write side
	eventStore := eventstore.NewGormEventStore(db)
	repo := repository.NewTaskRepository(eventStore)
	bus := eventbus.New()
	taskHandler := handlers.NewTaskHandler(repo, bus)

	// Read side; the relational projector must run before the search
	// projector, which reads the row the relational projector just wrote
	taskProjector := projections.NewTaskProjector(db)
	for _, kind := range domain.TaskEventKinds() {
		bus.Subscribe(kind, taskProjector)
	}

	esClient, err := elasticsearchClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Elasticsearch")
	}
	if esClient != nil {
		searchProjector := projections.NewSearchProjector(db, esClient, cfg)
		for _, kind := range domain.TaskEventKinds() {
			bus.Subscribe(kind, searchProjector)
		}
	}

	rebuilder := projections.NewRebuilder(db, eventStore, taskProjector)
	if cfg.RebuildOnStart {
		if err := rebuilder.Rebuild(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to rebuild read model")
		}
	}

	taskQueries := queries.NewTaskQueries(db, esClient, cfg)

	// Command queue consumer
	if cfg.AzureQueueConnStr != "" {
		azureClient, err := messaging.NewAzureClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Azure Service Bus")
		}
		msgProcessor := messaging.NewProcessor(taskHandler)
		go func() {
			if err := azureClient.StartConsumers(cfg.AzureTaskCommandQueueName, msgProcessor); err != nil {
				log.Fatal().Err(err).Msg("Failed to start task command queue consumer")
			}
		}()
	}

	server := api.NewServer(cfg, db, eventStore, repo, taskHandler, taskQueries, rebuilder)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
