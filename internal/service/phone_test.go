package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already local format", "09171234567", "09171234567"},
		{"country code prefix", "639171234567", "09171234567"},
		{"plus and spaces", "+63 917 123 4567", "09171234567"},
		{"dashes", "0917-123-4567", "09171234567"},
		{"ten digits gains leading zero", "9171234567", "09171234567"},
		{"overlong keeps last eleven", "00639171234567", "39171234567"},
		{"empty", "", ""},
		{"letters stripped", "(0917) ext123x4567", "09171234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}
