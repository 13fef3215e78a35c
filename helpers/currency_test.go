package helpers

import "testing"

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{0, "$0.00"},
		{100000, "$100,000.00"},
		{99500.5, "$99,500.50"},
		{1234567.89, "$1,234,567.89"},
		{999.99, "$999.99"},
		{1.999, "$2.00"},
		{-400, "$-400.00"},
		{-1500.25, "$-1,500.25"},
	}

	for _, tc := range cases {
		if got := FormatUSD(tc.amount); got != tc.want {
			t.Errorf("FormatUSD(%f): expected %q, got %q", tc.amount, tc.want, got)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{0, "+0.00%"},
		{0.05, "+0.05%"},
		{12.5, "+12.50%"},
		{-0.5, "-0.50%"},
	}

	for _, tc := range cases {
		if got := FormatPercent(tc.value); got != tc.want {
			t.Errorf("FormatPercent(%f): expected %q, got %q", tc.value, tc.want, got)
		}
	}
}
