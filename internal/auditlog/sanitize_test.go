package auditlog

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSanitizeMasksCardDataRecursively(t *testing.T) {
	raw := json.RawMessage(`{
		"order_number": "ORD-20260115-000042",
		"card_number": "4111 1111 1111 1234",
		"cvv": "123",
		"customer": {
			"password": "hunter2",
			"cards": [{"number": "5200000000001010", "security_code": "999"}]
		}
	}`)

	cleaned := Sanitize(raw)
	text := string(cleaned)

	if strings.Contains(text, "4111") && strings.Contains(text, "1111 1111") {
		t.Fatalf("full card number survived: %s", text)
	}
	if strings.Contains(text, "123\"") && strings.Contains(text, "cvv") && !strings.Contains(text, `"cvv":"[REDACTED]"`) {
		t.Fatalf("cvv survived: %s", text)
	}

	var parsed map[string]any
	if err := json.Unmarshal(cleaned, &parsed); err != nil {
		t.Fatalf("sanitized output is not JSON: %v", err)
	}
	if parsed["card_number"] != "4***********1234" {
		t.Fatalf("card_number = %v", parsed["card_number"])
	}
	if parsed["cvv"] != "[REDACTED]" {
		t.Fatalf("cvv = %v", parsed["cvv"])
	}
	if parsed["order_number"] != "ORD-20260115-000042" {
		t.Fatalf("order_number mangled: %v", parsed["order_number"])
	}

	customer := parsed["customer"].(map[string]any)
	if customer["password"] != "[REDACTED]" {
		t.Fatalf("password = %v", customer["password"])
	}
	card := customer["cards"].([]any)[0].(map[string]any)
	if card["number"] != "5***********1010" {
		t.Fatalf("nested card number = %v", card["number"])
	}
	if card["security_code"] != "[REDACTED]" {
		t.Fatalf("security_code = %v", card["security_code"])
	}
}

func TestSanitizeDropsUnparseablePayloads(t *testing.T) {
	cleaned := Sanitize(json.RawMessage(`{"card_number": 4111`))
	if strings.Contains(string(cleaned), "4111") {
		t.Fatalf("broken payload leaked: %s", cleaned)
	}
	var parsed map[string]any
	if err := json.Unmarshal(cleaned, &parsed); err != nil {
		t.Fatalf("replacement payload is not JSON: %v", err)
	}
}

func TestMaskCardNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"4111111111111234", "4***********1234"},
		{"4111 1111 1111 1234", "4***********1234"},
		{"123", "[REDACTED]"},
		{"", "[REDACTED]"},
	}
	for _, tc := range cases {
		if got := MaskCardNumber(tc.in); got != tc.want {
			t.Errorf("MaskCardNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
