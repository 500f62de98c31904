package ports

import (
	"context"

	"github.com/aescanero/dagrun/pkg/domain"
)

// RunStore persists run records
type RunStore interface {
	Save(ctx context.Context, record *domain.RunRecord) error
	// Get returns an error wrapping domain.ErrRunNotFound for unknown ids
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, runID string) error
}
