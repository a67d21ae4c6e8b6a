package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagFor(t *testing.T) {
	cases := []struct {
		name        string
		discrepancy float64
		want        Flag
	}{
		{"clear overcharge", 50, FlagOvercharge},
		{"just above band", 0.011, FlagOvercharge},
		{"upper band edge", 0.01, FlagMatch},
		{"zero", 0, FlagMatch},
		{"lower band edge", -0.01, FlagMatch},
		{"just below band", -0.011, FlagUndercharge},
		{"clear undercharge", -50, FlagUndercharge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FlagFor(tc.discrepancy))
		})
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		name  string
		total float64
		want  Severity
	}{
		{"zero", 0, SeverityGreen},
		{"below yellow floor", 49.99, SeverityGreen},
		{"negative below yellow floor", -49.99, SeverityGreen},
		{"yellow floor", 50, SeverityYellow},
		{"negative yellow", -120, SeverityYellow},
		{"below red floor", 499.99, SeverityYellow},
		{"red floor", 500, SeverityRed},
		{"negative red", -500, SeverityRed},
		{"large red", 12000, SeverityRed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SeverityFor(tc.total))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, Round2(10.555))
	assert.Equal(t, -0.1, Round2(-0.1004))
	assert.Equal(t, 0.0, Round2(0.0049))
}

func TestDateRangeIsZero(t *testing.T) {
	assert.True(t, DateRange{}.IsZero())
	assert.False(t, DateRange{From: "2025-01-01"}.IsZero())
	assert.False(t, DateRange{To: "2025-01-01"}.IsZero())
}
