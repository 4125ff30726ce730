// Package blobstore provides the document.Storage backends.
package blobstore

import (
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// New returns the configured storage backend.
func New(cfg config.StorageConfig, metrics *observability.Metrics, logger zerolog.Logger) (document.Storage, error) {
	switch cfg.Backend {
	case "", config.StorageInline:
		return NewInline(), nil
	case config.StorageAzure:
		client, err := NewAzureClient(cfg.Azure)
		if err != nil {
			return nil, err
		}
		return NewAzure(client, cfg.Azure, metrics, observability.Component(logger, "blobstore")), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
