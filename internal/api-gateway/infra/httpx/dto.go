package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateOrderRequest is the body of POST /orders. The order id is assigned
// by the gateway.
type CreateOrderRequest struct {
	UserID *int                 `json:"user_id" validate:"required"`
	Items  []CreateOrderItemDTO `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemDTO struct {
	ProductID *int `json:"product_id" validate:"required"`
	Quantity  *int `json:"quantity" validate:"required"`
}

func (r CreateOrderRequest) toOrder() domain.Order {
	o := domain.Order{UserID: *r.UserID, Items: make([]domain.OrderItem, 0, len(r.Items))}
	for _, it := range r.Items {
		o.Items = append(o.Items, domain.OrderItem{ProductID: *it.ProductID, Quantity: *it.Quantity})
	}
	return o
}

// UpdateOrderRequest is the body of PUT /orders/{id}.
type UpdateOrderRequest struct {
	OrderID *int               `json:"order_id" validate:"required"`
	Status  domain.OrderStatus `json:"status" validate:"required"`
}

func (r UpdateOrderRequest) toOrder() domain.Order {
	return domain.Order{OrderID: *r.OrderID, Status: r.Status}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
