package domain

// Product is a catalog record together with its stock counter.
type Product struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         int    `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
}

// StockResult is the outcome of a stock decrement for one product.
type StockResult struct {
	ProductID int
	OK        bool
}
