// Package sharding resolves entity keys to their single live owner.
//
// A Directory is partitioned into shards selected by xxhash(key) mod n. Each
// shard keeps the refs it has created; a key is only ever bound to one ref,
// so every message for that key is processed by the same sequential actor.
package sharding

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
)

var liveEntities = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "entity_directory_live_entities",
		Help: "Number of entities currently owned by the directory",
	},
	[]string{"entity_type"},
)

// Factory builds the behavior for a freshly referenced key. The entity starts
// with an empty value.
type Factory[C any] func(key string, self *actor.Ref[C]) actor.Behavior[C]

type shard[C any] struct {
	mu   sync.Mutex
	refs map[string]*actor.Ref[C]
}

// Directory owns every entity of one type.
type Directory[C any] struct {
	entityType string
	shards     []*shard[C]
	factory    Factory[C]
	logger     *slog.Logger
	ctx        context.Context
}

// New creates a directory with n shards. Entities run until ctx is done or
// Stop is called.
func New[C any](ctx context.Context, entityType string, n int, factory Factory[C], logger *slog.Logger) *Directory[C] {
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory[C]{
		entityType: entityType,
		shards:     make([]*shard[C], n),
		factory:    factory,
		logger:     logger.With(slog.String("entity_type", entityType)),
		ctx:        ctx,
	}
	for i := range d.shards {
		d.shards[i] = &shard[C]{refs: make(map[string]*actor.Ref[C])}
	}
	return d
}

// ShardFor returns the shard index that owns key.
func (d *Directory[C]) ShardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(d.shards)))
}

// Resolve returns the ref owning key, creating the entity on first reference.
// Resolution never fails.
func (d *Directory[C]) Resolve(key string) *actor.Ref[C] {
	s := d.shards[d.ShardFor(key)]

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.refs[key]; ok {
		return ref
	}

	ref := actor.NewRef[C](d.entityType+"/"+key, d.logger)
	ref.Run(d.ctx, d.factory(key, ref))
	s.refs[key] = ref
	liveEntities.WithLabelValues(d.entityType).Inc()

	d.logger.Debug("entity started", slog.String("key", key))
	return ref
}

// Tell resolves key and sends msg to its owner.
func (d *Directory[C]) Tell(key string, msg C) bool {
	return d.Resolve(key).Tell(msg)
}

// Len returns the number of entities created so far.
func (d *Directory[C]) Len() int {
	total := 0
	for _, s := range d.shards {
		s.mu.Lock()
		total += len(s.refs)
		s.mu.Unlock()
	}
	return total
}

// Stop closes every entity mailbox and waits until their loops exit or ctx
// is done.
func (d *Directory[C]) Stop(ctx context.Context) {
	var refs []*actor.Ref[C]
	for _, s := range d.shards {
		s.mu.Lock()
		for _, ref := range s.refs {
			refs = append(refs, ref)
		}
		s.mu.Unlock()
	}
	for _, ref := range refs {
		ref.Stop()
	}
	for _, ref := range refs {
		select {
		case <-ref.Done():
		case <-ctx.Done():
			d.logger.Warn("directory stop interrupted", slog.Int("entities", len(refs)))
			return
		}
	}
	liveEntities.WithLabelValues(d.entityType).Sub(float64(len(refs)))
}
