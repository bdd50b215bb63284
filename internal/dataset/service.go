package dataset

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/store"
)

// Service coordinates the registry with the chunk store so dataset
// operations keep metadata and collection state consistent.
type Service struct {
	registry *Registry
	store    *store.ChunkStore
	logger   *zap.Logger
}

// NewService creates a dataset service.
func NewService(registry *Registry, chunkStore *store.ChunkStore, logger *zap.Logger) *Service {
	return &Service{registry: registry, store: chunkStore, logger: logger}
}

// Registry exposes the underlying metadata registry.
func (s *Service) Registry() *Registry { return s.registry }

// Create sanitizes the requested name and registers the dataset. The
// sanitized name is written back into ds, so callers see what was created.
func (s *Service) Create(ctx context.Context, ds *models.Dataset) error {
	ds.Name = SanitizeName(strings.TrimSpace(ds.Name))
	return s.registry.Create(ctx, ds)
}

// Get returns a dataset by name.
func (s *Service) Get(ctx context.Context, name string) (*models.Dataset, error) {
	return s.registry.Get(ctx, name)
}

// List returns all datasets.
func (s *Service) List(ctx context.Context) ([]*models.Dataset, error) {
	return s.registry.List(ctx)
}

// CheckName reports the sanitized form of a proposed name and whether it is
// still free.
func (s *Service) CheckName(ctx context.Context, name string) (sanitized string, available bool, err error) {
	sanitized = SanitizeName(strings.TrimSpace(name))
	exists, err := s.registry.Exists(ctx, sanitized)
	if err != nil {
		return "", false, err
	}
	return sanitized, !exists, nil
}

// UpdateMetadata updates a dataset's mutable attributes.
func (s *Service) UpdateMetadata(ctx context.Context, ds *models.Dataset) error {
	return s.registry.UpdateMetadata(ctx, ds)
}

// Recount recomputes the distinct-source document count from the chunk rows
// and stores it in the registry.
func (s *Service) Recount(ctx context.Context, name string) (int, error) {
	count, err := s.store.UniqueDocumentCount(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := s.registry.SetDocumentCount(ctx, name, count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteDocument removes one source document from a dataset and recounts.
func (s *Service) DeleteDocument(ctx context.Context, name, source string) (int, error) {
	if _, err := s.registry.Get(ctx, name); err != nil {
		return 0, err
	}
	unlock, err := s.store.LockDataset(name)
	if err != nil {
		return 0, err
	}
	defer unlock()

	removed, err := s.store.DeleteBySource(ctx, name, source)
	if err != nil {
		return 0, err
	}
	if _, err := s.Recount(ctx, name); err != nil {
		return removed, err
	}
	return removed, nil
}

// Delete removes a dataset's collection and its metadata record. The two
// removals are independent; the returned status reports each outcome so a
// partial failure is visible rather than flattened into one error.
func (s *Service) Delete(ctx context.Context, name string) (models.DeleteStatus, error) {
	if _, err := s.registry.Get(ctx, name); err != nil {
		return models.DeleteStatus{}, err
	}
	unlock, err := s.store.LockDataset(name)
	if err != nil {
		return models.DeleteStatus{}, err
	}
	defer unlock()

	var status models.DeleteStatus
	var details []string

	if err := s.store.DeleteDataset(ctx, name); err != nil {
		s.logger.Error("collection deletion failed",
			zap.String("dataset", name), zap.Error(err))
		details = append(details, fmt.Sprintf("collection: %v", err))
	} else {
		status.CollectionDeleted = true
	}

	if err := s.registry.Delete(ctx, name); err != nil {
		s.logger.Error("metadata deletion failed",
			zap.String("dataset", name), zap.Error(err))
		details = append(details, fmt.Sprintf("metadata: %v", err))
	} else {
		status.MetadataDeleted = true
	}

	status.Detail = strings.Join(details, "; ")
	return status, nil
}
