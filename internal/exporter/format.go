package exporter

import (
	"strconv"

	"rollbook/pkg/contracts/domain"
)

// formatPercentage renders a rate with two decimals, or an empty cell when
// it is undefined.
func formatPercentage(p domain.Percentage) string {
	if !p.Defined() {
		return ""
	}
	return p.Format(2)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// percentageCell returns a workbook value for a rate: a float rounded to two
// decimals, or nil for an empty cell.
func percentageCell(p domain.Percentage) interface{} {
	if !p.Defined() {
		return nil
	}
	return float64(p.Round(2))
}
