package enums

import "slices"

// InventoryChangeType classifies an inventory history entry.
type InventoryChangeType string

const (
	InventoryChangeStockIn    InventoryChangeType = "stock_in"
	InventoryChangeStockOut   InventoryChangeType = "stock_out"
	InventoryChangeAdjustment InventoryChangeType = "adjustment"
)

var validInventoryChangeTypes = []InventoryChangeType{
	InventoryChangeStockIn,
	InventoryChangeStockOut,
	InventoryChangeAdjustment,
}

// String implements fmt.Stringer.
func (c InventoryChangeType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known InventoryChangeType.
func (c InventoryChangeType) IsValid() bool {
	return slices.Contains(validInventoryChangeTypes, c)
}

// ParseInventoryChangeType converts raw input into an InventoryChangeType.
func ParseInventoryChangeType(value string) (InventoryChangeType, error) {
	return parse("inventory change type", value, validInventoryChangeTypes)
}
