package coordinator

import (
	"context"

	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
)

type (
	PlacementPool    = actor.Group[PlacementCommand]
	CancellationPool = actor.Group[CancellationCommand]
)

// NewPlacementPool spawns size placement workers behind a round-robin router.
func NewPlacementPool(ctx context.Context, size int, deps Deps) *PlacementPool {
	deps = deps.withDefaults()
	return actor.NewGroup(ctx, "placement-worker", size, deps.Logger, func(self *actor.Ref[PlacementCommand]) actor.Behavior[PlacementCommand] {
		return NewPlacementWorker(self, deps)
	})
}

// NewCancellationPool spawns size cancellation workers behind a round-robin
// router.
func NewCancellationPool(ctx context.Context, size int, deps Deps) *CancellationPool {
	deps = deps.withDefaults()
	return actor.NewGroup(ctx, "cancellation-worker", size, deps.Logger, func(self *actor.Ref[CancellationCommand]) actor.Behavior[CancellationCommand] {
		return NewCancellationWorker(self, deps)
	})
}
