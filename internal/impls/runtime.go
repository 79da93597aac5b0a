package impls

import (
	"context"

	"github.com/nolancloud/ncp/internal/domain"
)

// ContainerRuntime abstracts the container engine. Every method reports
// an absent container as a NotFoundError, distinguishable from transport
// failures (RuntimeUnavailableError).
type ContainerRuntime interface {
	List(ctx context.Context, all bool) ([]domain.RuntimeContainer, error)
	Inspect(ctx context.Context, id string) (*domain.RuntimeState, error)
	Create(ctx context.Context, spec domain.CreateSpec) (*domain.CreatedResource, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	Remove(ctx context.Context, id string, force bool) error
	Stats(ctx context.Context, id string) (domain.StatsSnapshot, error)
}
