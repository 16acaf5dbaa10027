package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"20rb", 20000},
		{"1jt", 1000000},
		{"20.000", 20000},
		{"50k", 50000},
		{"50K", 50000},
		{"15 ribu", 15000},
		{"2 juta", 2000000},
		{"1.250.000", 1250000},
		{"75000", 75000},
		{"1,5jt", 1500000},
		{"Rp 20.000", 20000},
		{"kira-kira 30", 30000},
		{"bayar 2jtan", 2000000},
		{"bukan angka", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			assert.True(t, decimal.NewFromInt(tt.expected).Equal(got), "ParseAmount(%q) = %s", tt.input, got)
		})
	}
}

func TestIsValidAmount(t *testing.T) {
	assert.True(t, IsValidAmount(ParseAmount("20rb")))
	assert.False(t, IsValidAmount(ParseAmount("bukan angka")))
	assert.False(t, IsValidAmount(decimal.NewFromInt(-5)))
	assert.False(t, IsValidAmount(ParseAmount("0,004")))
	assert.False(t, IsValidAmount(decimal.RequireFromString("0.004")))
	assert.True(t, IsValidAmount(decimal.RequireFromString("0.005")))
}
