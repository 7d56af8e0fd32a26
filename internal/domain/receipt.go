package domain

// ReceiptLine is one purchased cart line on a checkout receipt.
type ReceiptLine struct {
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Receipt summarizes a successful checkout.
type Receipt struct {
	OrderID string        `json:"order_id"`
	Lines   []ReceiptLine `json:"lines"`
	Total   float64       `json:"total"`
}
