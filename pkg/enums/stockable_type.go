package enums

import "fmt"

// StockableType discriminates the aggregate inventory is tracked against.
type StockableType string

const (
	StockableTypeProduct StockableType = "product"
	StockableTypeVariant StockableType = "variant"
)

var validStockableTypes = []StockableType{
	StockableTypeProduct,
	StockableTypeVariant,
}

// String implements fmt.Stringer.
func (s StockableType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockableType.
func (s StockableType) IsValid() bool {
	for _, candidate := range validStockableTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockableType converts raw input into a StockableType.
func ParseStockableType(value string) (StockableType, error) {
	for _, candidate := range validStockableTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stockable type %q", value)
}
