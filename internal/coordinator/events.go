package coordinator

import "github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"

// OrderPlacedData is the payload of an order.placed event.
type OrderPlacedData struct {
	OrderID         int                `json:"order_id"`
	UserID          int                `json:"user_id"`
	TotalPrice      int                `json:"total_price"`
	DiscountApplied bool               `json:"discount_applied"`
	Items           []domain.OrderItem `json:"items"`
}

// OrderCancelledData is the payload of an order.cancelled event.
type OrderCancelledData struct {
	OrderID   int                `json:"order_id"`
	UserID    int                `json:"user_id"`
	Refunded  int                `json:"refunded"`
	RefundOK  bool               `json:"refund_ok"`
	Restocked []domain.OrderItem `json:"restocked"`
}
