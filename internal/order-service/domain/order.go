package domain

// Order is a placed order. Before placement succeeds it only exists inside
// the placement saga; afterwards its entity is the sole owner.
type Order struct {
	OrderID    int         `json:"order_id"`
	UserID     int         `json:"user_id"`
	TotalPrice int         `json:"total_price"`
	Status     OrderStatus `json:"status"`
	Items      []OrderItem `json:"items"`
}

type OrderItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type OrderStatus string

const (
	StatusPlaced    OrderStatus = "PLACED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusDelivered OrderStatus = "DELIVERED"
)

// CanTransition reports whether an order may move from s to next.
// Only PLACED orders move, and only to CANCELLED or DELIVERED.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == StatusPlaced && (next == StatusCancelled || next == StatusDelivered)
}

// Clone returns a deep copy so callers never share the items slice with an
// entity.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

// MergeItems folds items by product id, summing quantities. The result keeps
// the order in which each product first appears.
func MergeItems(items []OrderItem) []OrderItem {
	idx := make(map[int]int, len(items))
	merged := make([]OrderItem, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged
}
