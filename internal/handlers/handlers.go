package handlers

import (
	"time"

	"picfinder/internal/indexer"
	"picfinder/internal/startup"
)

type Handlers struct {
	manager          *indexer.Manager
	defaultRoot      string
	defaultBatchSize int
	startedAt        time.Time
}

func New(manager *indexer.Manager, config *startup.Config) *Handlers {
	return &Handlers{
		manager:          manager,
		defaultRoot:      config.PicturesDir,
		defaultBatchSize: config.BatchSize,
		startedAt:        time.Now(),
	}
}

// root resolves the folder a request targets, falling back to the
// configured pictures directory.
func (h *Handlers) root(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultRoot
}
