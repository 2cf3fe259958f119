package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/taskboard/eventstore"
	"example.com/taskboard/projections"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the read model from the event log and exit",
	Run:   runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	log.Info().Msg("Rebuilding read model")

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	eventStore := eventstore.NewGormEventStore(db)
	taskProjector := projections.NewTaskProjector(db)
	rebuilder := projections.NewRebuilder(db, eventStore, taskProjector)

	ctx := context.Background()
	if err := rebuilder.Rebuild(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to rebuild read model")
	}

	esClient, err := elasticsearchClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Elasticsearch")
	}
	if esClient != nil {
		searchProjector := projections.NewSearchProjector(db, esClient, cfg)
		if err := searchProjector.ReindexAll(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to reindex search documents")
		}
	}

	log.Info().Msg("Rebuild complete")
}
