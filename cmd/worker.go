package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/taskboard/domain"
	"example.com/taskboard/eventbus"
	"example.com/taskboard/eventstore"
	"example.com/taskboard/handlers"
	"example.com/taskboard/messaging"
	"example.com/taskboard/projections"
	"example.com/taskboard/repository"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the task command queue worker",
	Run:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker consumes task commands from the queue without exposing the HTTP
// surface. Projections run in-process off the same bus as in server mode.
func runWorker(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting worker")

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	eventStore := eventstore.NewGormEventStore(db)
	repo := repository.NewTaskRepository(eventStore)
	bus := eventbus.New()
	taskHandler := handlers.NewTaskHandler(repo, bus)

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

	if cfg.RebuildOnStart {
		rebuilder := projections.NewRebuilder(db, eventStore, taskProjector)
		if err := rebuilder.Rebuild(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to rebuild read model")
		}
	}

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

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Worker exited properly")
}
