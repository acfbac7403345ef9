package ports

import (
	"context"

	invdomain "github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
)

// Marketplace is the API the HTTP edge is built on. Absence and rejection are
// reported through the errors in core/domain/entity.
type Marketplace interface {
	GetProduct(ctx context.Context, productID int) (*invdomain.Product, error)
	// CreateOrder assigns the order id and runs the placement saga.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int) (*domain.Order, error)
	// UpdateOrder only accepts a move to DELIVERED. The path id must match the body.
	UpdateOrder(ctx context.Context, orderID int, order domain.Order) (bool, error)
	CancelOrder(ctx context.Context, orderID int) (bool, error)
}
