package cmd

import (
	"github.com/elastic/go-elasticsearch/v7"

	"example.com/taskboard/config"
	"example.com/taskboard/projections"
)

// elasticsearchClient connects to Elasticsearch and ensures the task index
// exists. Returns nil without error when search is disabled.
func elasticsearchClient(cfg config.Config) (*elasticsearch.Client, error) {
	if !cfg.ElasticSearchEnabled {
		return nil, nil
	}

	client, err := projections.NewElasticsearchClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := projections.EnsureIndices(client, cfg); err != nil {
		return nil, err
	}

	return client, nil
}
