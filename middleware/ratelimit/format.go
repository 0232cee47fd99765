package ratelimit

import "strconv"

// formatação de números para headers, sem fmt e sem notação científica.

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
