package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhatsApp(t *testing.T) {
	valid := map[string]string{
		"(11) 99999-0001":   "5511999990001",
		"+55 11 99999-0001": "5511999990001",
		"011 3333-4444":     "551133334444",
		"5521988887777":     "5521988887777",
	}
	for in, want := range valid {
		got, err := NormalizeWhatsApp(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "  ", "123", "1234567890123456"} {
		_, err := NormalizeWhatsApp(in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}
