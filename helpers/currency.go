package helpers

import "fmt"

// FormatUSD formats a dollar amount with comma thousand separators and two
// decimal places, for notification payloads and log lines.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	totalCents := int64(amount*100 + 0.5)
	whole := totalCents / 100
	cents := totalCents % 100

	str := fmt.Sprintf("%d", whole)
	length := len(str)

	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	if negative {
		return fmt.Sprintf("$-%s.%02d", result, cents)
	}
	return fmt.Sprintf("$%s.%02d", result, cents)
}

// FormatPercent renders a return percentage with a leading sign, matching the
// way episode results are presented to researchers.
func FormatPercent(value float64) string {
	if value >= 0 {
		return fmt.Sprintf("+%.2f%%", value)
	}
	return fmt.Sprintf("%.2f%%", value)
}
