package service

import (
	"strings"
	"unicode"
)

// NormalizeWhatsApp reduces a phone number to the digits-only international form used
// as the provider contact handle. Brazilian numbers given with area code only (10 or
// 11 digits) get the 55 country code.
func NormalizeWhatsApp(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validationError("whatsapp is required")
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimLeft(b.String(), "0")

	if len(phone) == 10 || len(phone) == 11 {
		phone = "55" + phone
	}
	if len(phone) < 12 || len(phone) > 15 {
		return "", validationError("invalid whatsapp length: %d", len(phone))
	}
	return phone, nil
}
