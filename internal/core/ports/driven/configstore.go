package driven

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// ConfigStore loads application configuration.
type ConfigStore interface {
	// Load reads the configuration, applying defaults for absent fields.
	Load(ctx context.Context) (*domain.Config, error)

	// Watch emits a fresh Config whenever the backing file changes, until
	// ctx is done. Implementations that cannot watch return
	// domain.ErrInvalidInput.
	Watch(ctx context.Context) (<-chan domain.Config, error)
}
