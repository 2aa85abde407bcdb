package audit

import "strings"

// Redacted replaces the value of a fully masked field.
const Redacted = "***REDACTED***"

var sensitiveFields = map[string]struct{}{
	"password":          {},
	"new_password":      {},
	"current_password":  {},
	"token":             {},
	"access_token":      {},
	"refresh_token":     {},
	"mfa_secret":        {},
	"verification_code": {},
	"ssn":               {},
	"social_security":   {},
	"credit_card":       {},
	"bank_account":      {},
}

// partialFields keeps the first n and last m characters.
var partialFields = map[string][2]int{
	"email": {3, 4},
	"phone": {0, 4},
}

// MaskSensitive returns a copy of data with credentials redacted and
// identifying fields partially masked. Keys match case-insensitively and
// nested maps are masked recursively. A nil map stays nil.
func MaskSensitive(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))
	for key, value := range data {
		lower := strings.ToLower(key)

		if _, ok := sensitiveFields[lower]; ok {
			out[key] = Redacted
			continue
		}

		if keep, ok := partialFields[lower]; ok {
			if s, isString := value.(string); isString {
				out[key] = maskPartial(s, keep[0], keep[1])
				continue
			}
		}

		if nested, ok := value.(map[string]any); ok {
			out[key] = MaskSensitive(nested)
			continue
		}

		out[key] = value
	}
	return out
}

// maskPartial counts runes so multi-byte characters are never split.
func maskPartial(s string, head, tail int) string {
	r := []rune(s)
	if len(r) <= head+tail {
		return "***"
	}
	return string(r[:head]) + "***" + string(r[len(r)-tail:])
}

// MaskEmail masks an address the same way MaskSensitive masks an "email"
// field. Use it when logging outside an entry.
func MaskEmail(email string) string {
	keep := partialFields["email"]
	return maskPartial(email, keep[0], keep[1])
}
