package auditlog

import (
	"encoding/json"
	"strings"
)

// redactedKeys are matched case-insensitively against JSON object keys. Values
// under these keys are replaced wholesale.
var redactedKeys = []string{
	"cvv",
	"cvc",
	"security_code",
	"password",
	"secret",
	"token",
	"authorization",
}

// cardNumberKeys hold full PANs. They are masked down to brand-detectable
// first digit plus last four rather than fully redacted, so support staff can
// still match a log line to a cardholder's statement.
var cardNumberKeys = []string{
	"card_number",
	"cardnumber",
	"pan",
	"number",
}

const redactedValue = "[REDACTED]"

// Sanitize strips sensitive values from a JSON payload. Unparseable input is
// replaced entirely; log entries must never carry raw card data even when the
// gateway returns garbage.
func Sanitize(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return json.RawMessage(`{"sanitizer":"unparseable payload dropped"}`)
	}
	cleaned := sanitizeValue(value)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return json.RawMessage(`{"sanitizer":"unparseable payload dropped"}`)
	}
	return out
}

// SanitizeAny marshals an arbitrary value and sanitizes the result.
func SanitizeAny(value any) json.RawMessage {
	raw, err := json.Marshal(value)
	if err != nil {
		return json.RawMessage(`{"sanitizer":"unparseable payload dropped"}`)
	}
	return Sanitize(raw)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cleaned := make(map[string]any, len(typed))
		for key, inner := range typed {
			switch {
			case isRedactedKey(key):
				cleaned[key] = redactedValue
			case isCardNumberKey(key):
				if s, ok := inner.(string); ok {
					cleaned[key] = MaskCardNumber(s)
				} else {
					cleaned[key] = redactedValue
				}
			default:
				cleaned[key] = sanitizeValue(inner)
			}
		}
		return cleaned
	case []any:
		cleaned := make([]any, len(typed))
		for i, inner := range typed {
			cleaned[i] = sanitizeValue(inner)
		}
		return cleaned
	default:
		return value
	}
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range redactedKeys {
		if strings.Contains(lower, candidate) {
			return true
		}
	}
	return false
}

func isCardNumberKey(key string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range cardNumberKeys {
		if lower == candidate {
			return true
		}
	}
	return false
}

// MaskCardNumber keeps the first digit and last four of a PAN, masking the
// rest. Short values are fully masked.
func MaskCardNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 8 {
		return redactedValue
	}
	return digits[:1] + strings.Repeat("*", len(digits)-5) + digits[len(digits)-4:]
}
