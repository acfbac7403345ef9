// Package coordinator runs the placement and cancellation sagas.
//
// Each worker is an actor. It keeps one scratch entry per in-flight order id
// and advances it as replies from product and order entities arrive, so a
// single worker interleaves many orders. Calls to the users and wallets
// services are made synchronously from inside the message handler.
package coordinator

import (
	"context"
	"log/slog"

	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
)

// Entities delivers a message to the entity owning key.
type Entities[C any] interface {
	Tell(key string, msg C) bool
}

type (
	ProductEntities = Entities[inventoryservice.Command]
	OrderEntities   = Entities[orderapp.Command]
)

// UserService is the identity/discount service.
type UserService interface {
	GetUser(ctx context.Context, id int) (*userservice.User, error)
	SetDiscountAvailed(ctx context.Context, id int, availed bool) error
}

// WalletService is the wallet/ledger service. An error wrapping
// paymentservice.ErrOutcomeUnknown means the transaction may have been applied.
type WalletService interface {
	Debit(ctx context.Context, userID, amount int) error
	Credit(ctx context.Context, userID, amount int) error
}

// Deps are the collaborators shared by every saga worker.
type Deps struct {
	Products ProductEntities
	Orders   OrderEntities
	Users    UserService
	Wallets  WalletService
	SagaLog  sagalog.Repository
	Events   events.Publisher
	Logger   *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return d
}

// Compensation undoes the effect of an earlier successful step.
type Compensation interface {
	Name() string
	Compensate(ctx context.Context) error
}

// rollback runs compensations in reverse order. Failures are logged and do
// not stop the remaining compensations.
func rollback(ctx context.Context, logger *slog.Logger, steps []Compensation) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		logger.InfoContext(ctx, "compensating step", slog.String("step", step.Name()))
		if err := step.Compensate(ctx); err != nil {
			logger.ErrorContext(ctx, "CRITICAL: Failed to compensate step",
				slog.String("step", step.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, "compensation of "+step.Name()+" failed: "+err.Error())
		}
	}
	return errs
}

// record appends a saga log entry. The log is an audit trail, so a failed
// write is only logged.
func record(ctx context.Context, deps Deps, entry *sagalog.SagaLog) {
	if deps.SagaLog == nil {
		return
	}
	if err := deps.SagaLog.Save(ctx, entry); err != nil {
		deps.Logger.WarnContext(ctx, "saga log write failed",
			slog.String("saga_id", entry.SagaID),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits an order event. Failures are logged only.
func publish(ctx context.Context, deps Deps, eventType string, orderID int, data any) {
	evt, err := events.NewEvent(eventType, orderapp.Key(orderID), "marketplace", data)
	if err != nil {
		deps.Logger.WarnContext(ctx, "order event not built", slog.String("error", err.Error()))
		return
	}
	if err := deps.Events.Publish(ctx, evt); err != nil {
		deps.Logger.WarnContext(ctx, "order event not published",
			slog.String("event_type", eventType),
			slog.Int("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
