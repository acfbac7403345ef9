package coordinator

import (
	"context"
	"errors"
	"fmt"

	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
)

var errNotDelivered = errors.New("entity unavailable")

// Step names recorded in the saga log.
const (
	stepAdmission     = "Admission_Step"
	stepProductLookup = "Product_Lookup_Step"
	stepValidateStock = "Validate_Stock_Step"
	stepResolveUser   = "Resolve_User_Step"
	stepDebitWallet   = "Debit_Wallet_Step"
	stepDecreaseStock = "Decrease_Stock_Step"
	stepCommitOrder   = "Commit_Order_Step"
	stepCancelOrder   = "Cancel_Order_Step"
	stepRestock       = "Restock_Step"
	stepRefundWallet  = "Refund_Wallet_Step"
)

// --- RestockStep ---

// RestockStep returns units to a product. The increase is fire-and-forget.
type RestockStep struct {
	products  ProductEntities
	productID int
	quantity  int
}

func NewRestockStep(products ProductEntities, productID, quantity int) *RestockStep {
	return &RestockStep{products: products, productID: productID, quantity: quantity}
}

func (s *RestockStep) Name() string { return fmt.Sprintf("%s(product=%d)", stepRestock, s.productID) }

func (s *RestockStep) Compensate(context.Context) error {
	if !s.products.Tell(inventoryservice.Key(s.productID), inventoryservice.IncreaseStock{Quantity: s.quantity}) {
		return fmt.Errorf("restock product %d: %w", s.productID, errNotDelivered)
	}
	return nil
}

// --- RefundStep ---

// RefundStep credits a debited amount back to the user's wallet.
type RefundStep struct {
	wallets WalletService
	userID  int
	amount  int
}

func NewRefundStep(wallets WalletService, userID, amount int) *RefundStep {
	return &RefundStep{wallets: wallets, userID: userID, amount: amount}
}

func (s *RefundStep) Name() string { return stepRefundWallet }

func (s *RefundStep) Compensate(ctx context.Context) error {
	if err := s.wallets.Credit(ctx, s.userID, s.amount); err != nil {
		return fmt.Errorf("refund %d to user %d: %w", s.amount, s.userID, err)
	}
	return nil
}
