// Package inventoryservice owns product stock. Each product is a single
// entity whose counter is only ever changed by its own message loop.
package inventoryservice

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/sharding"
)

// EntityType names product entities in logs and metrics.
const EntityType = "product"

// Command is a message accepted by a product entity.
type Command interface {
	isProductCommand()
}

// Initialize binds the catalog record. Only the first call has an effect.
type Initialize struct {
	Product domain.Product
}

// GetInfo replies with a snapshot of the product, or nil if none is bound.
type GetInfo struct {
	ReplyTo actor.Replier[*domain.Product]
}

// DecreaseStock removes Quantity units iff that many are in stock.
type DecreaseStock struct {
	Quantity int
	ReplyTo  actor.Replier[domain.StockResult]
}

// IncreaseStock returns Quantity units to stock. Used for restock and
// compensation.
type IncreaseStock struct {
	Quantity int
}

func (Initialize) isProductCommand()    {}
func (GetInfo) isProductCommand()       {}
func (DecreaseStock) isProductCommand() {}
func (IncreaseStock) isProductCommand() {}

// Directory resolves product ids to their entity.
type Directory = sharding.Directory[Command]

// Key is the directory key for a product id.
func Key(productID int) string { return strconv.Itoa(productID) }

// NewDirectory creates the product entity directory.
func NewDirectory(ctx context.Context, shards int, logger *slog.Logger) *Directory {
	logger = logger.With(slog.String("component", "product-entity"))
	return sharding.New(ctx, EntityType, shards, func(key string, _ *actor.Ref[Command]) actor.Behavior[Command] {
		return newEntity(key, logger)
	}, logger)
}

type entity struct {
	id      int
	product *domain.Product
	logger  *slog.Logger
}

func newEntity(key string, logger *slog.Logger) *entity {
	id, _ := strconv.Atoi(key)
	return &entity{id: id, logger: logger.With(slog.String("product_id", key))}
}

func (e *entity) Receive(ctx context.Context, msg Command) {
	switch m := msg.(type) {
	case Initialize:
		e.initialize(ctx, m)
	case GetInfo:
		m.ReplyTo.Reply(e.snapshot())
	case DecreaseStock:
		m.ReplyTo.Reply(domain.StockResult{ProductID: e.id, OK: e.decrease(ctx, m.Quantity)})
	case IncreaseStock:
		e.increase(ctx, m.Quantity)
	default:
		e.logger.WarnContext(ctx, "unknown product command")
	}
}

func (e *entity) initialize(ctx context.Context, m Initialize) {
	if e.product != nil {
		e.logger.DebugContext(ctx, "already initialized, ignoring")
		return
	}
	p := m.Product
	e.product = &p
	e.logger.DebugContext(ctx, "initialized", slog.Int("stock_quantity", p.StockQuantity))
}

func (e *entity) snapshot() *domain.Product {
	if e.product == nil {
		return nil
	}
	p := *e.product
	return &p
}

func (e *entity) decrease(ctx context.Context, qty int) bool {
	if e.product == nil || qty <= 0 || e.product.StockQuantity < qty {
		e.logger.DebugContext(ctx, "decrease stock refused", slog.Int("quantity", qty))
		return false
	}
	e.product.StockQuantity -= qty
	e.logger.DebugContext(ctx, "stock decreased",
		slog.Int("quantity", qty),
		slog.Int("stock_quantity", e.product.StockQuantity),
	)
	return true
}

func (e *entity) increase(ctx context.Context, qty int) {
	if e.product == nil {
		e.logger.WarnContext(ctx, "increase stock on unknown product ignored", slog.Int("quantity", qty))
		return
	}
	if qty <= 0 {
		return
	}
	e.product.StockQuantity += qty
	e.logger.DebugContext(ctx, "stock increased",
		slog.Int("quantity", qty),
		slog.Int("stock_quantity", e.product.StockQuantity),
	)
}
