package driven

import (
	"context"
	"errors"

	"github.com/danakj/fizz/internal/domain/model"
)

// ErrConfigNotFound is returned by Load when no configuration has ever been
// saved. Callers start from an empty document.
var ErrConfigNotFound = errors.New("configuration not found")

// ConfigStore defines the driven port for configuration persistence. The
// whole document is loaded and saved as a unit; the store checks the schema
// version on load.
type ConfigStore interface {
	Load(ctx context.Context) (*model.Config, error)
	Save(ctx context.Context, cfg *model.Config) error
}
