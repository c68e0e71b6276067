package enums

import "fmt"

// PaymentLogAction identifies which gateway interaction produced a log entry.
type PaymentLogAction string

const (
	PaymentLogActionProcessCard      PaymentLogAction = "process_card"
	PaymentLogActionGeneratePix      PaymentLogAction = "generate_pix"
	PaymentLogActionGenerateBankSlip PaymentLogAction = "generate_bank_slip"
	PaymentLogActionCheckStatus      PaymentLogAction = "check_status"
	PaymentLogActionRefund           PaymentLogAction = "refund"
	PaymentLogActionWebhook          PaymentLogAction = "webhook"
)

var validPaymentLogActions = []PaymentLogAction{
	PaymentLogActionProcessCard,
	PaymentLogActionGeneratePix,
	PaymentLogActionGenerateBankSlip,
	PaymentLogActionCheckStatus,
	PaymentLogActionRefund,
	PaymentLogActionWebhook,
}

// String implements fmt.Stringer.
func (p PaymentLogAction) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentLogAction.
func (p PaymentLogAction) IsValid() bool {
	for _, candidate := range validPaymentLogActions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentLogAction converts raw input into a PaymentLogAction.
func ParsePaymentLogAction(value string) (PaymentLogAction, error) {
	for _, candidate := range validPaymentLogActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment log action %q", value)
}
