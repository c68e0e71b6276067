package enums

import "fmt"

// StockMovementReason explains why a stock quantity changed.
type StockMovementReason string

const (
	StockMovementReasonAdjustment   StockMovementReason = "adjustment"
	StockMovementReasonConversion   StockMovementReason = "conversion"
	StockMovementReasonCancellation StockMovementReason = "cancellation"
)

var validStockMovementReasons = []StockMovementReason{
	StockMovementReasonAdjustment,
	StockMovementReasonConversion,
	StockMovementReasonCancellation,
}

// String implements fmt.Stringer.
func (s StockMovementReason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockMovementReason.
func (s StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockMovementReason converts raw input into a StockMovementReason.
func ParseStockMovementReason(value string) (StockMovementReason, error) {
	for _, candidate := range validStockMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement reason %q", value)
}
