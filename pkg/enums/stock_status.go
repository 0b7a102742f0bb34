package enums

// StockStatus classifies an inventory record against its reorder level.
type StockStatus string

const (
	StockStatusInStock  StockStatus = "in_stock"
	StockStatusLowStock StockStatus = "low_stock"
)

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// StockStatusFor classifies quantity against the reorder level. A quantity at
// or below the reorder level counts as low stock.
func StockStatusFor(quantity, reorderLevel int) StockStatus {
	if quantity <= reorderLevel {
		return StockStatusLowStock
	}
	return StockStatusInStock
}
